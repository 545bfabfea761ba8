// Package analytics 计算管理后台的申请统计。每次调用都全量读取，不做缓存。
package analytics

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"gorm.io/gorm"

	"jobBoard/internal/database"
	"jobBoard/internal/jobs"
)

// TrendDays 是趋势图覆盖的天数（含今天）。
const TrendDays = 30

// GenderCount 按性别统计。
type GenderCount struct {
	Gender string `json:"gender"`
	Count  int64  `json:"count"`
}

// AgeGroupCount 按年龄段统计。
type AgeGroupCount struct {
	AgeGroup string `json:"age_group"`
	Count    int64  `json:"count"`
}

// JobCount 按职位名称快照统计。
type JobCount struct {
	JobTitle string `json:"job_title"`
	Count    int64  `json:"count"`
}

// StatusCount 按审阅状态统计。
type StatusCount struct {
	Status string `json:"status"`
	Count  int64  `json:"count"`
}

// DayCount 是某一天的申请数，Date 为 YYYY-MM-DD。
type DayCount struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

// Summary 是统计结果，字段名与前端仪表盘一致。
type Summary struct {
	TotalApplications     int64           `json:"totalApplications"`
	TodayApplications     int64           `json:"todayApplications"`
	WeeklyApplications    int64           `json:"weeklyApplications"`
	MonthlyApplications   int64           `json:"monthlyApplications"`
	ActiveJobs            int64           `json:"activeJobs"`
	ExpiredJobs           int64           `json:"expiredJobs"`
	AvgApplicationsPerJob float64         `json:"avgApplicationsPerJob"`
	GenderDistribution    []GenderCount   `json:"genderDistribution"`
	AgeDistribution       []AgeGroupCount `json:"ageDistribution"`
	ApplicationsByJob     []JobCount      `json:"applicationsByJob"`
	StatusDistribution    []StatusCount   `json:"statusDistribution"`
	ApplicationsOverTime  []DayCount      `json:"applicationsOverTime"`
}

type ageBucket struct {
	label    string
	min, max int
}

// 年龄段两端都包含；最高段不设上限。18 岁以下不计入任何年龄段。
var ageBuckets = []ageBucket{
	{"18-25", 18, 25},
	{"26-35", 26, 35},
	{"36-45", 36, 45},
	{"46+", 46, math.MaxInt},
}

var statusOrder = []string{
	database.StatusPending,
	database.StatusReviewed,
	database.StatusShortlisted,
	database.StatusRejected,
}

// AgeGroup returns the bucket label for age, or "" when age is below 18.
func AgeGroup(age int) string {
	for _, b := range ageBuckets {
		if age >= b.min && age <= b.max {
			return b.label
		}
	}
	return ""
}

// AveragePerJob 返回 total/active 保留一位小数；没有有效职位时为 0。
func AveragePerJob(total, active int64) float64 {
	if active <= 0 {
		return 0
	}
	return math.Round(float64(total)/float64(active)*10) / 10
}

// Compute 根据全部申请与职位计算统计结果。
func Compute(apps []database.Application, jobList []database.Job, now time.Time, loc *time.Location) Summary {
	if loc == nil {
		loc = time.UTC
	}
	now = now.In(loc)
	today := dayKey(now)
	weekAgo := now.Add(-7 * 24 * time.Hour)
	monthAgo := now.Add(-30 * 24 * time.Hour)

	s := Summary{TotalApplications: int64(len(apps))}

	for i := range jobList {
		if jobs.IsListed(&jobList[i], now, loc) {
			s.ActiveJobs++
		} else {
			s.ExpiredJobs++
		}
	}
	s.AvgApplicationsPerJob = AveragePerJob(s.TotalApplications, s.ActiveJobs)

	trend := make(map[string]int64, TrendDays)
	genders := map[string]int64{}
	ages := map[string]int64{}
	titles := map[string]int64{}
	statuses := map[string]int64{}

	for _, app := range apps {
		applied := app.AppliedAt.In(loc)
		day := dayKey(applied)
		if day == today {
			s.TodayApplications++
		}
		if !applied.Before(weekAgo) {
			s.WeeklyApplications++
		}
		if !applied.Before(monthAgo) {
			s.MonthlyApplications++
		}
		trend[day]++

		genders[app.Gender]++
		if g := AgeGroup(app.Age); g != "" {
			ages[g]++
		}
		titles[app.JobTitle]++
		statuses[app.Status]++
	}

	s.GenderDistribution = make([]GenderCount, 0, len(genders))
	for g, n := range genders {
		s.GenderDistribution = append(s.GenderDistribution, GenderCount{Gender: g, Count: n})
	}
	sort.Slice(s.GenderDistribution, func(i, j int) bool {
		a, b := s.GenderDistribution[i], s.GenderDistribution[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Gender < b.Gender
	})

	s.AgeDistribution = make([]AgeGroupCount, 0, len(ageBuckets))
	for _, b := range ageBuckets {
		s.AgeDistribution = append(s.AgeDistribution, AgeGroupCount{AgeGroup: b.label, Count: ages[b.label]})
	}

	s.ApplicationsByJob = make([]JobCount, 0, len(titles))
	for title, n := range titles {
		s.ApplicationsByJob = append(s.ApplicationsByJob, JobCount{JobTitle: title, Count: n})
	}
	sort.Slice(s.ApplicationsByJob, func(i, j int) bool {
		a, b := s.ApplicationsByJob[i], s.ApplicationsByJob[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.JobTitle < b.JobTitle
	})

	s.StatusDistribution = make([]StatusCount, 0, len(statusOrder))
	for _, st := range statusOrder {
		s.StatusDistribution = append(s.StatusDistribution, StatusCount{Status: st, Count: statuses[st]})
		delete(statuses, st)
	}
	extra := make([]string, 0, len(statuses))
	for st := range statuses {
		extra = append(extra, st)
	}
	sort.Strings(extra)
	for _, st := range extra {
		s.StatusDistribution = append(s.StatusDistribution, StatusCount{Status: st, Count: statuses[st]})
	}

	s.ApplicationsOverTime = make([]DayCount, 0, TrendDays)
	y, m, d := now.Date()
	for i := TrendDays - 1; i >= 0; i-- {
		key := time.Date(y, m, d-i, 12, 0, 0, 0, loc).Format(jobs.DateLayout)
		s.ApplicationsOverTime = append(s.ApplicationsOverTime, DayCount{Date: key, Count: trend[key]})
	}

	return s
}

func dayKey(t time.Time) string {
	return t.Format(jobs.DateLayout)
}

// Aggregator 从数据库读取数据并调用 Compute。
type Aggregator struct {
	db  *gorm.DB
	loc *time.Location
	now func() time.Time
}

// NewAggregator 构造 Aggregator。
func NewAggregator(db *gorm.DB, loc *time.Location) *Aggregator {
	if loc == nil {
		loc = time.UTC
	}
	return &Aggregator{db: db, loc: loc, now: time.Now}
}

// Summary 全量读取申请与职位表并计算统计。
func (a *Aggregator) Summary(ctx context.Context) (Summary, error) {
	var apps []database.Application
	if err := a.db.WithContext(ctx).
		Select("id", "applied_at", "gender", "age", "job_title", "status").
		Find(&apps).Error; err != nil {
		return Summary{}, fmt.Errorf("load applications: %w", err)
	}

	var jobList []database.Job
	if err := a.db.WithContext(ctx).
		Select("id", "expiry_date", "is_active").
		Find(&jobList).Error; err != nil {
		return Summary{}, fmt.Errorf("load jobs: %w", err)
	}

	return Compute(apps, jobList, a.now(), a.loc), nil
}
