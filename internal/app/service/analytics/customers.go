package analytics

import (
	"context"
	"sort"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/fatflowers/repairdesk/internal/models"
	"github.com/fatflowers/repairdesk/pkg/apperr"
	"github.com/fatflowers/repairdesk/pkg/types"
)

type CustomerAnalysis string

const (
	CustomerLoyalty      CustomerAnalysis = "loyalty"
	CustomerSegmentation CustomerAnalysis = "segmentation"
	CustomerRetention    CustomerAnalysis = "retention"
)

// CustomerStats is one customer's ticket history condensed.
type CustomerStats struct {
	Customer             *models.Customer   `json:"customer"`
	ServiceCount         int                `json:"serviceCount"`
	TotalSpent           decimal.Decimal    `json:"totalSpent" swaggertype:"number"`
	AverageSpent         decimal.Decimal    `json:"averageSpent" swaggertype:"number"`
	FirstService         time.Time          `json:"firstService"`
	LastService          time.Time          `json:"lastService"`
	DaysSinceLastService int                `json:"daysSinceLastService"`
	DeviceTypes          []types.DeviceType `json:"deviceTypes"`
	Brands               []string           `json:"brands"`
}

type LoyaltyLevels struct {
	Bronze   []CustomerStats `json:"bronze"`
	Silver   []CustomerStats `json:"silver"`
	Gold     []CustomerStats `json:"gold"`
	Platinum []CustomerStats `json:"platinum"`
}

type Reward struct {
	Level       string `json:"level"`
	MinServices int    `json:"minServices"`
	Reward      string `json:"reward"`
	Description string `json:"description"`
}

var loyaltyRewards = []Reward{
	{Level: "Bronze", MinServices: 1, Reward: "5% discount", Description: "after the first service"},
	{Level: "Silver", MinServices: 3, Reward: "10% discount", Description: "after the 3rd service"},
	{Level: "Gold", MinServices: 6, Reward: "15% discount + free check-up", Description: "after the 6th service"},
	{Level: "Platinum", MinServices: 10, Reward: "20% discount + priority service", Description: "after the 10th service"},
}

type Loyalty struct {
	LoyaltyLevels LoyaltyLevels `json:"loyaltyLevels"`
	Rewards       []Reward      `json:"rewards"`
	Summary       struct {
		TotalCustomers int `json:"totalCustomers"`
		BronzeCount    int `json:"bronzeCount"`
		SilverCount    int `json:"silverCount"`
		GoldCount      int `json:"goldCount"`
		PlatinumCount  int `json:"platinumCount"`
	} `json:"summary"`
}

type Segments struct {
	Champions          []CustomerStats `json:"champions"`
	LoyalCustomers     []CustomerStats `json:"loyalCustomers"`
	PotentialLoyalists []CustomerStats `json:"potentialLoyalists"`
	NewCustomers       []CustomerStats `json:"newCustomers"`
	AtRisk             []CustomerStats `json:"atRisk"`
	Lost               []CustomerStats `json:"lost"`
}

type Segmentation struct {
	Segments Segments `json:"segments"`
	Summary  struct {
		TotalCustomers          int `json:"totalCustomers"`
		ChampionsCount          int `json:"championsCount"`
		LoyalCustomersCount     int `json:"loyalCustomersCount"`
		PotentialLoyalistsCount int `json:"potentialLoyalistsCount"`
		NewCustomersCount       int `json:"newCustomersCount"`
		AtRiskCount             int `json:"atRiskCount"`
		LostCount               int `json:"lostCount"`
	} `json:"summary"`
}

type RetentionMonth struct {
	Month              string          `json:"month"`
	NewCustomers       int             `json:"newCustomers"`
	ReturningCustomers int             `json:"returningCustomers"`
	TotalCustomers     int             `json:"totalCustomers"`
	TotalRevenue       decimal.Decimal `json:"totalRevenue" swaggertype:"number"`
	RetentionRate      float64         `json:"retentionRate"`
}

type CustomerLifetime struct {
	CustomerID   string    `json:"customerId"`
	Lifetime     int       `json:"lifetime"`
	ServiceCount int       `json:"serviceCount"`
	FirstService time.Time `json:"firstService"`
	LastService  time.Time `json:"lastService"`
}

type Retention struct {
	MonthlyData       []RetentionMonth   `json:"monthlyData"`
	CustomerLifetimes []CustomerLifetime `json:"customerLifetimes"`
	Summary           struct {
		AverageLifetime            int     `json:"averageLifetime"`
		TotalCustomers             int     `json:"totalCustomers"`
		AverageServicesPerCustomer float64 `json:"averageServicesPerCustomer"`
	} `json:"summary"`
}

// CustomerReport carries the requested analyses; the others are omitted.
type CustomerReport struct {
	Loyalty      *Loyalty      `json:"loyalty,omitempty"`
	Segmentation *Segmentation `json:"segmentation,omitempty"`
	Retention    *Retention    `json:"retention,omitempty"`
}

// Customers runs one analysis, or all three when typ is empty.
func (s *Service) Customers(ctx context.Context, typ CustomerAnalysis) (*CustomerReport, error) {
	switch typ {
	case "", CustomerLoyalty, CustomerSegmentation, CustomerRetention:
	default:
		return nil, apperr.Invalid("unknown analysis type %q", typ)
	}

	services, err := s.loadServices(ctx, nil)
	if err != nil {
		return nil, err
	}
	now := s.now()
	stats := customerStats(services, now)

	var r CustomerReport
	if typ == "" || typ == CustomerLoyalty {
		r.Loyalty = loyalty(stats)
	}
	if typ == "" || typ == CustomerSegmentation {
		r.Segmentation = segmentation(stats, now)
	}
	if typ == "" || typ == CustomerRetention {
		r.Retention = retention(services)
	}
	return &r, nil
}

// customerStats expects services oldest first and returns one entry per
// customer ordered by first visit.
func customerStats(services []models.Service, now time.Time) []CustomerStats {
	byCustomer := lo.GroupBy(services, func(svc models.Service) string { return svc.CustomerID })
	order := lo.Uniq(lo.Map(services, func(svc models.Service, _ int) string { return svc.CustomerID }))

	out := make([]CustomerStats, 0, len(order))
	for _, id := range order {
		list := byCustomer[id]
		st := CustomerStats{
			Customer:     list[0].Customer,
			ServiceCount: len(list),
			FirstService: list[0].CreatedAt,
			LastService:  list[len(list)-1].CreatedAt,
			DeviceTypes:  lo.Uniq(lo.Map(list, func(svc models.Service, _ int) types.DeviceType { return svc.DeviceType })),
			Brands:       lo.Uniq(lo.Map(list, func(svc models.Service, _ int) string { return svc.Brand })),
		}
		for i := range list {
			st.TotalSpent = st.TotalSpent.Add(income(&list[i]))
		}
		st.AverageSpent = st.TotalSpent.Div(decimal.NewFromInt(int64(st.ServiceCount)))
		st.DaysSinceLastService = days(now.Sub(st.LastService))
		out = append(out, st)
	}
	return out
}

func loyalty(stats []CustomerStats) *Loyalty {
	var l Loyalty
	l.LoyaltyLevels = LoyaltyLevels{
		Bronze: []CustomerStats{}, Silver: []CustomerStats{}, Gold: []CustomerStats{}, Platinum: []CustomerStats{},
	}
	for _, st := range stats {
		switch {
		case st.ServiceCount <= 2:
			l.LoyaltyLevels.Bronze = append(l.LoyaltyLevels.Bronze, st)
		case st.ServiceCount <= 5:
			l.LoyaltyLevels.Silver = append(l.LoyaltyLevels.Silver, st)
		case st.ServiceCount <= 10:
			l.LoyaltyLevels.Gold = append(l.LoyaltyLevels.Gold, st)
		default:
			l.LoyaltyLevels.Platinum = append(l.LoyaltyLevels.Platinum, st)
		}
	}
	l.Rewards = loyaltyRewards
	l.Summary.TotalCustomers = len(stats)
	l.Summary.BronzeCount = len(l.LoyaltyLevels.Bronze)
	l.Summary.SilverCount = len(l.LoyaltyLevels.Silver)
	l.Summary.GoldCount = len(l.LoyaltyLevels.Gold)
	l.Summary.PlatinumCount = len(l.LoyaltyLevels.Platinum)
	return &l
}

var (
	championSpend  = decimal.NewFromInt(5000)
	loyalSpend     = decimal.NewFromInt(3000)
	potentialSpend = decimal.NewFromInt(1000)
	atRiskSpend    = decimal.NewFromInt(2000)
)

// segmentation applies the RFM rules in order; a customer matching none of
// them is left out.
func segmentation(stats []CustomerStats, now time.Time) *Segmentation {
	recent := now.AddDate(0, 0, -90)
	yearAgo := now.AddDate(0, 0, -365)

	seg := Segments{
		Champions: []CustomerStats{}, LoyalCustomers: []CustomerStats{}, PotentialLoyalists: []CustomerStats{},
		NewCustomers: []CustomerStats{}, AtRisk: []CustomerStats{}, Lost: []CustomerStats{},
	}
	for _, st := range stats {
		isRecent := st.LastService.After(recent)
		switch {
		case st.ServiceCount >= 5 && st.TotalSpent.GreaterThanOrEqual(championSpend) && isRecent:
			seg.Champions = append(seg.Champions, st)
		case st.ServiceCount >= 3 && st.TotalSpent.GreaterThanOrEqual(loyalSpend) && isRecent:
			seg.LoyalCustomers = append(seg.LoyalCustomers, st)
		case st.ServiceCount >= 2 && st.TotalSpent.GreaterThanOrEqual(potentialSpend) && isRecent:
			seg.PotentialLoyalists = append(seg.PotentialLoyalists, st)
		case st.ServiceCount == 1 && isRecent:
			seg.NewCustomers = append(seg.NewCustomers, st)
		case st.TotalSpent.GreaterThanOrEqual(atRiskSpend) && st.LastService.Before(recent) && st.LastService.After(yearAgo):
			seg.AtRisk = append(seg.AtRisk, st)
		case st.LastService.Before(yearAgo):
			seg.Lost = append(seg.Lost, st)
		}
	}

	out := &Segmentation{Segments: seg}
	out.Summary.TotalCustomers = len(stats)
	out.Summary.ChampionsCount = len(seg.Champions)
	out.Summary.LoyalCustomersCount = len(seg.LoyalCustomers)
	out.Summary.PotentialLoyalistsCount = len(seg.PotentialLoyalists)
	out.Summary.NewCustomersCount = len(seg.NewCustomers)
	out.Summary.AtRiskCount = len(seg.AtRisk)
	out.Summary.LostCount = len(seg.Lost)
	return out
}

// retention expects services oldest first. A ticket counts as "new" when it
// is the customer's first one.
func retention(services []models.Service) *Retention {
	type month struct {
		newCustomers, returning int
		customers               map[string]struct{}
		revenue                 decimal.Decimal
	}
	months := map[string]*month{}
	seen := map[string]bool{}
	lifetimes := map[string]*CustomerLifetime{}
	var order []string

	for i := range services {
		svc := &services[i]
		key := svc.CreatedAt.Format("2006-01")
		m, ok := months[key]
		if !ok {
			m = &month{customers: map[string]struct{}{}}
			months[key] = m
		}
		m.customers[svc.CustomerID] = struct{}{}
		m.revenue = m.revenue.Add(income(svc))
		if seen[svc.CustomerID] {
			m.returning++
		} else {
			m.newCustomers++
			seen[svc.CustomerID] = true
		}

		lt, ok := lifetimes[svc.CustomerID]
		if !ok {
			lt = &CustomerLifetime{CustomerID: svc.CustomerID, FirstService: svc.CreatedAt}
			lifetimes[svc.CustomerID] = lt
			order = append(order, svc.CustomerID)
		}
		lt.ServiceCount++
		lt.LastService = svc.CreatedAt
	}

	r := &Retention{MonthlyData: []RetentionMonth{}, CustomerLifetimes: []CustomerLifetime{}}
	for key, m := range months {
		rm := RetentionMonth{
			Month:              key,
			NewCustomers:       m.newCustomers,
			ReturningCustomers: m.returning,
			TotalCustomers:     len(m.customers),
			TotalRevenue:       m.revenue,
		}
		if rm.TotalCustomers > 0 {
			rm.RetentionRate = float64(rm.ReturningCustomers) / float64(rm.TotalCustomers) * 100
		}
		r.MonthlyData = append(r.MonthlyData, rm)
	}
	sort.Slice(r.MonthlyData, func(i, j int) bool { return r.MonthlyData[i].Month < r.MonthlyData[j].Month })

	total := 0
	for _, id := range order {
		lt := lifetimes[id]
		lt.Lifetime = days(lt.LastService.Sub(lt.FirstService))
		total += lt.Lifetime
		r.CustomerLifetimes = append(r.CustomerLifetimes, *lt)
	}
	r.Summary.TotalCustomers = len(order)
	if len(order) > 0 {
		r.Summary.AverageLifetime = int(float64(total)/float64(len(order)) + 0.5)
		r.Summary.AverageServicesPerCustomer = float64(len(services)) / float64(len(order))
	}
	return r
}
