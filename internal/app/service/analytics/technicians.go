package analytics

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/fatflowers/repairdesk/internal/app/service/finance"
	"github.com/fatflowers/repairdesk/internal/models"
	"github.com/fatflowers/repairdesk/pkg/apperr"
	"github.com/fatflowers/repairdesk/pkg/types"
)

type TechnicianAnalysis string

const (
	TechnicianPerformance TechnicianAnalysis = "performance"
	TechnicianEfficiency  TechnicianAnalysis = "efficiency"
	TechnicianComparison  TechnicianAnalysis = "comparison"
)

const (
	// hoursPerService is the assumed bench time of one ticket.
	hoursPerService = 2.0
	// hoursPerMonth is 22 working days of 8 hours.
	hoursPerMonth = 8 * 22.0
)

type TechnicianQuery struct {
	Type         TechnicianAnalysis `form:"type"`
	TechnicianID string             `form:"technicianId"`
	Period       types.Period       `form:"period"`
}

type TechnicianPerf struct {
	Technician             *models.User    `json:"technician"`
	Rank                   int             `json:"rank"`
	ServiceCount           int             `json:"serviceCount"`
	CompletedServices      int             `json:"completedServices"`
	CompletionRate         float64         `json:"completionRate"`
	TotalRevenue           decimal.Decimal `json:"totalRevenue" swaggertype:"number"`
	AverageRevenue         decimal.Decimal `json:"averageRevenue" swaggertype:"number"`
	AverageCompletionHours float64         `json:"averageCompletionHours"`
	Efficiency             float64         `json:"efficiency"`
}

type Performance struct {
	Technicians []TechnicianPerf `json:"technicians"`
	Summary     struct {
		TotalTechnicians      int             `json:"totalTechnicians"`
		TotalServices         int             `json:"totalServices"`
		TotalRevenue          decimal.Decimal `json:"totalRevenue" swaggertype:"number"`
		AverageCompletionRate float64         `json:"averageCompletionRate"`
	} `json:"summary"`
}

type TechnicianEff struct {
	Technician      *models.User `json:"technician"`
	ServiceCount    int          `json:"serviceCount"`
	RevenuePerHour  float64      `json:"revenuePerHour"`
	ServicesPerDay  float64      `json:"servicesPerDay"`
	UtilizationRate float64      `json:"utilizationRate"`
}

type Efficiency struct {
	Technicians []TechnicianEff `json:"efficiency"`
	Summary     struct {
		AverageRevenuePerHour  float64 `json:"averageRevenuePerHour"`
		AverageServicesPerDay  float64 `json:"averageServicesPerDay"`
		AverageUtilizationRate float64 `json:"averageUtilizationRate"`
	} `json:"summary"`
}

type ComparisonEntry struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	Email           string  `json:"email"`
	Rank            int     `json:"rank"`
	ServiceCount    int     `json:"serviceCount"`
	CompletionRate  float64 `json:"completionRate"`
	TotalRevenue    float64 `json:"totalRevenue"`
	RevenuePerHour  float64 `json:"revenuePerHour"`
	ServicesPerDay  float64 `json:"servicesPerDay"`
	UtilizationRate float64 `json:"utilizationRate"`
	OverallScore    float64 `json:"overallScore"`
}

type Comparison struct {
	Technicians       []ComparisonEntry `json:"comparison"`
	TopPerformer      *ComparisonEntry  `json:"topPerformer"`
	MostEfficient     *ComparisonEntry  `json:"mostEfficient"`
	HighestCompletion *ComparisonEntry  `json:"highestCompletion"`
}

type TechnicianReport struct {
	Period      types.Period `json:"period"`
	Performance *Performance `json:"performance,omitempty"`
	Efficiency  *Efficiency  `json:"efficiency,omitempty"`
	Comparison  *Comparison  `json:"comparison,omitempty"`
}

// Technicians reports on tickets opened within the period. Unassigned
// tickets are ignored.
func (s *Service) Technicians(ctx context.Context, q TechnicianQuery) (*TechnicianReport, error) {
	q.Period = types.Period(strings.ToLower(string(q.Period)))
	if q.Period == "" {
		q.Period = types.PeriodMonthly
	}
	switch q.Period {
	case types.PeriodDaily, types.PeriodWeekly, types.PeriodMonthly, types.PeriodYearly:
	default:
		return nil, apperr.Invalid("unknown period %q", q.Period)
	}
	switch q.Type {
	case "", TechnicianPerformance, TechnicianEfficiency, TechnicianComparison:
	default:
		return nil, apperr.Invalid("unknown analysis type %q", q.Type)
	}

	start, _ := finance.PeriodStart(q.Period, s.now())
	// Comparison always ranks the whole team.
	techID := q.TechnicianID
	if q.Type == TechnicianComparison || q.Type == "" {
		techID = ""
	}
	services, err := s.loadServices(ctx, func(db *gorm.DB) *gorm.DB {
		db = db.Where("technician_id IS NOT NULL AND created_at >= ?", start)
		if techID != "" {
			db = db.Where("technician_id = ?", techID)
		}
		return db
	})
	if err != nil {
		return nil, err
	}

	r := &TechnicianReport{Period: q.Period}
	perf := performance(services)
	eff := efficiency(services)
	switch q.Type {
	case TechnicianPerformance:
		r.Performance = perf
	case TechnicianEfficiency:
		r.Efficiency = eff
	case TechnicianComparison:
		r.Comparison = comparison(perf, eff)
	default:
		r.Performance, r.Efficiency, r.Comparison = perf, eff, comparison(perf, eff)
	}
	return r, nil
}

// byTechnician groups tickets per technician in first-seen order.
func byTechnician(services []models.Service) ([]string, map[string][]models.Service) {
	assigned := lo.Filter(services, func(svc models.Service, _ int) bool { return svc.TechnicianID != nil && svc.Technician != nil })
	groups := lo.GroupBy(assigned, func(svc models.Service) string { return *svc.TechnicianID })
	order := lo.Uniq(lo.Map(assigned, func(svc models.Service, _ int) string { return *svc.TechnicianID }))
	return order, groups
}

func performance(services []models.Service) *Performance {
	order, groups := byTechnician(services)
	p := &Performance{Technicians: make([]TechnicianPerf, 0, len(order))}

	for _, id := range order {
		list := groups[id]
		tp := TechnicianPerf{Technician: list[0].Technician, ServiceCount: len(list)}
		var spent time.Duration
		timed := 0
		for i := range list {
			svc := &list[i]
			tp.TotalRevenue = tp.TotalRevenue.Add(income(svc))
			if svc.Status.Finished() {
				tp.CompletedServices++
			}
			if svc.CompletedAt != nil {
				spent += svc.CompletedAt.Sub(svc.CreatedAt)
				timed++
			}
		}
		tp.CompletionRate = float64(tp.CompletedServices) / float64(tp.ServiceCount) * 100
		tp.AverageRevenue = tp.TotalRevenue.Div(decimal.NewFromInt(int64(tp.ServiceCount)))
		if timed > 0 {
			tp.AverageCompletionHours = spent.Hours() / float64(timed)
		}
		tp.Efficiency = efficiencyScore(tp)
		p.Technicians = append(p.Technicians, tp)

		p.Summary.TotalRevenue = p.Summary.TotalRevenue.Add(tp.TotalRevenue)
		p.Summary.TotalServices += tp.ServiceCount
	}

	sort.SliceStable(p.Technicians, func(i, j int) bool {
		a, b := p.Technicians[i], p.Technicians[j]
		if !a.TotalRevenue.Equal(b.TotalRevenue) {
			return a.TotalRevenue.GreaterThan(b.TotalRevenue)
		}
		return a.CompletedServices > b.CompletedServices
	})
	for i := range p.Technicians {
		p.Technicians[i].Rank = i + 1
	}
	p.Summary.TotalTechnicians = len(p.Technicians)
	if len(p.Technicians) > 0 {
		p.Summary.AverageCompletionRate = lo.SumBy(p.Technicians, func(tp TechnicianPerf) float64 { return tp.CompletionRate }) /
			float64(len(p.Technicians))
	}
	return p
}

// efficiencyScore weighs completion rate 0.3, average revenue 0.4 (one point
// per 1000, capped at 100) and speed 0.3 (100 minus days per repair).
func efficiencyScore(tp TechnicianPerf) float64 {
	revenue := math.Min(tp.AverageRevenue.InexactFloat64()/1000, 100)
	speed := 0.0
	if tp.AverageCompletionHours > 0 {
		speed = math.Max(0, 100-tp.AverageCompletionHours/24)
	}
	return tp.CompletionRate*0.3 + revenue*0.4 + speed*0.3
}

func efficiency(services []models.Service) *Efficiency {
	order, groups := byTechnician(services)
	e := &Efficiency{Technicians: make([]TechnicianEff, 0, len(order))}

	for _, id := range order {
		list := groups[id]
		revenue := decimal.Zero
		for i := range list {
			revenue = revenue.Add(income(&list[i]))
		}
		hours := float64(len(list)) * hoursPerService
		activeDays := lo.Uniq(lo.Map(list, func(svc models.Service, _ int) string { return svc.CreatedAt.Format(time.DateOnly) }))

		e.Technicians = append(e.Technicians, TechnicianEff{
			Technician:      list[0].Technician,
			ServiceCount:    len(list),
			RevenuePerHour:  revenue.InexactFloat64() / hours,
			ServicesPerDay:  float64(len(list)) / float64(len(activeDays)),
			UtilizationRate: hours / hoursPerMonth * 100,
		})
	}
	if n := float64(len(e.Technicians)); n > 0 {
		e.Summary.AverageRevenuePerHour = lo.SumBy(e.Technicians, func(t TechnicianEff) float64 { return t.RevenuePerHour }) / n
		e.Summary.AverageServicesPerDay = lo.SumBy(e.Technicians, func(t TechnicianEff) float64 { return t.ServicesPerDay }) / n
		e.Summary.AverageUtilizationRate = lo.SumBy(e.Technicians, func(t TechnicianEff) float64 { return t.UtilizationRate }) / n
	}
	return e
}

func comparison(perf *Performance, eff *Efficiency) *Comparison {
	effByID := lo.SliceToMap(eff.Technicians, func(t TechnicianEff) (string, TechnicianEff) { return t.Technician.ID, t })

	c := &Comparison{Technicians: make([]ComparisonEntry, 0, len(perf.Technicians))}
	for _, tp := range perf.Technicians {
		entry := ComparisonEntry{
			ID:             tp.Technician.ID,
			Name:           tp.Technician.Name,
			Email:          tp.Technician.Email,
			Rank:           tp.Rank,
			ServiceCount:   tp.ServiceCount,
			CompletionRate: tp.CompletionRate,
			TotalRevenue:   tp.TotalRevenue.InexactFloat64(),
		}
		effScore := 0.0
		if te, ok := effByID[tp.Technician.ID]; ok {
			entry.RevenuePerHour = te.RevenuePerHour
			entry.ServicesPerDay = te.ServicesPerDay
			entry.UtilizationRate = te.UtilizationRate
			effScore = te.RevenuePerHour/1000*50 + te.UtilizationRate*0.5 + te.ServicesPerDay*10
		}
		entry.OverallScore = (tp.Efficiency + effScore) / 2
		c.Technicians = append(c.Technicians, entry)
	}
	sort.SliceStable(c.Technicians, func(i, j int) bool { return c.Technicians[i].OverallScore > c.Technicians[j].OverallScore })

	if len(c.Technicians) > 0 {
		c.TopPerformer = &c.Technicians[0]
		best := lo.MaxBy(c.Technicians, func(a, b ComparisonEntry) bool { return a.RevenuePerHour > b.RevenuePerHour })
		c.MostEfficient = &best
		top := lo.MaxBy(c.Technicians, func(a, b ComparisonEntry) bool { return a.CompletionRate > b.CompletionRate })
		c.HighestCompletion = &top
	}
	return c
}
