package dataset

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"tabpredict/ml"
)

// Record is one parsed sample passed through the cleaning rules. Line is the
// position of the row in the source file.
type Record struct {
	Line   int
	Row    ml.Row
	Target float64
}

// CleaningRule 清洗规则
type CleaningRule interface {
	Apply(*Record) (*Record, error)
	Name() string
}

// QualityIssue 质量问题
type QualityIssue struct {
	Type      string    `json:"type"`
	Severity  string    `json:"severity"`
	Message   string    `json:"message"`
	Line      int       `json:"line"`
	Timestamp time.Time `json:"timestamp"`
}

// CleaningStats 清洗统计
type CleaningStats struct {
	TotalProcessed int64            `json:"total_processed"`
	Passed         int64            `json:"passed"`
	Rejected       int64            `json:"rejected"`
	Corrected      int64            `json:"corrected"`
	Issues         map[string]int64 `json:"issues"`
	LastClean      time.Time        `json:"last_clean"`
}

// DataCleaner 数据清洗器
type DataCleaner struct {
	rules  []CleaningRule
	logger *zap.Logger

	mu     sync.RWMutex
	issues []QualityIssue
	stats  CleaningStats
}

// NewDataCleaner creates a cleaner without rules.
func NewDataCleaner(logger *zap.Logger) *DataCleaner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DataCleaner{
		logger: logger,
		stats:  CleaningStats{Issues: make(map[string]int64)},
	}
}

// NewTaskCleaner returns a cleaner with the default rules for a task.
func NewTaskCleaner(task string, logger *zap.Logger) (*DataCleaner, error) {
	dc := NewDataCleaner(logger)
	dc.AddRule(NewLevelNormalizationRule())
	switch task {
	case ml.TaskInsurance:
		dc.AddRule(NewRangeRule(InsuranceBounds()))
		dc.AddRule(NewLevelRule(InsuranceLevels()))
		dc.AddRule(NewTargetRangeRule(0, 1e7))
	case ml.TaskDiabetes:
		dc.AddRule(NewRangeRule(DiabetesBounds()))
		dc.AddRule(NewBinaryTargetRule())
	default:
		return nil, fmt.Errorf("unknown task %q", task)
	}
	return dc, nil
}

// AddRule 添加清洗规则
func (dc *DataCleaner) AddRule(rule CleaningRule) {
	dc.rules = append(dc.rules, rule)
	dc.logger.Debug("added cleaning rule", zap.String("rule", rule.Name()))
}

// Clean runs every rule over the dataset and returns a new dataset holding
// only the rows that passed. Rows are numbered from 2 so issues point at the
// matching CSV line.
func (dc *DataCleaner) Clean(ds *ml.Dataset) (*ml.Dataset, []QualityIssue) {
	out := &ml.Dataset{Schema: ds.Schema, Target: ds.Target}
	var issues []QualityIssue

	dc.mu.Lock()
	defer dc.mu.Unlock()

	for i, row := range ds.Rows {
		dc.stats.TotalProcessed++
		record := &Record{Line: i + 2, Row: copyRow(row), Target: ds.Y[i]}

		var recordIssues []QualityIssue
		corrected := false
		for _, rule := range dc.rules {
			cleaned, err := rule.Apply(record)
			if err != nil {
				recordIssues = append(recordIssues, QualityIssue{
					Type:      rule.Name(),
					Severity:  "high",
					Message:   err.Error(),
					Line:      record.Line,
					Timestamp: time.Now(),
				})
				dc.stats.Issues[rule.Name()]++
				continue
			}
			if cleaned != nil && cleaned != record {
				record = cleaned
				corrected = true
			}
		}

		if len(recordIssues) > 0 {
			dc.stats.Rejected++
			issues = append(issues, recordIssues...)
			continue
		}
		if corrected {
			dc.stats.Corrected++
		}
		dc.stats.Passed++
		out.Rows = append(out.Rows, record.Row)
		out.Y = append(out.Y, record.Target)
	}

	dc.issues = append(dc.issues, issues...)
	dc.stats.LastClean = time.Now()
	if len(issues) > 0 {
		dc.logger.Warn("rows rejected during cleaning",
			zap.String("target", ds.Target),
			zap.Int("rejected", ds.Len()-out.Len()),
			zap.Int("kept", out.Len()),
		)
	}
	return out, issues
}

// GetStats 获取统计信息
func (dc *DataCleaner) GetStats() CleaningStats {
	dc.mu.RLock()
	defer dc.mu.RUnlock()

	stats := dc.stats
	stats.Issues = make(map[string]int64, len(dc.stats.Issues))
	for k, v := range dc.stats.Issues {
		stats.Issues[k] = v
	}
	return stats
}

// GetIssues returns the most recent issues, at most limit (all when limit <= 0).
func (dc *DataCleaner) GetIssues(limit int) []QualityIssue {
	dc.mu.RLock()
	defer dc.mu.RUnlock()

	if limit <= 0 || limit > len(dc.issues) {
		limit = len(dc.issues)
	}
	issues := make([]QualityIssue, limit)
	copy(issues, dc.issues[len(dc.issues)-limit:])
	return issues
}

func copyRow(row ml.Row) ml.Row {
	out := ml.NewRow()
	for k, v := range row.Numeric {
		out.Numeric[k] = v
	}
	for k, v := range row.Categorical {
		out.Categorical[k] = v
	}
	return out
}

// ============ 清洗规则实现 ============

// Bound is an inclusive numeric range.
type Bound struct {
	Min float64
	Max float64
}

// InsuranceBounds matches the ranges the prediction API accepts.
func InsuranceBounds() map[string]Bound {
	return map[string]Bound{
		"age":      {0, 120},
		"bmi":      {10, 70},
		"children": {0, 10},
	}
}

func InsuranceLevels() map[string][]string {
	return map[string][]string{
		"sex":    {"female", "male"},
		"smoker": {"no", "yes"},
		"region": {"northeast", "northwest", "southeast", "southwest"},
	}
}

// DiabetesBounds matches the ranges the prediction API accepts. BMI keeps
// zero readings, which the public dataset uses for "not measured".
func DiabetesBounds() map[string]Bound {
	return map[string]Bound{
		"Pregnancies":              {0, 20},
		"Glucose":                  {0, 300},
		"BloodPressure":            {0, 200},
		"SkinThickness":            {0, 100},
		"Insulin":                  {0, 900},
		"BMI":                      {0, 70},
		"DiabetesPedigreeFunction": {0, 3},
		"Age":                      {0, 120},
	}
}

// RangeRule 数值范围规则
type RangeRule struct {
	Bounds map[string]Bound
}

func NewRangeRule(bounds map[string]Bound) *RangeRule {
	return &RangeRule{Bounds: bounds}
}

func (r *RangeRule) Name() string {
	return "range_validation"
}

func (r *RangeRule) Apply(record *Record) (*Record, error) {
	for _, name := range sortedKeys(r.Bounds) {
		v, ok := record.Row.Numeric[name]
		if !ok {
			continue
		}
		b := r.Bounds[name]
		if v < b.Min || v > b.Max {
			return nil, fmt.Errorf("%s %.4g out of range [%g, %g]", name, v, b.Min, b.Max)
		}
	}
	return record, nil
}

// LevelRule 类别取值规则
type LevelRule struct {
	Levels map[string][]string
}

func NewLevelRule(levels map[string][]string) *LevelRule {
	return &LevelRule{Levels: levels}
}

func (r *LevelRule) Name() string {
	return "level_validation"
}

func (r *LevelRule) Apply(record *Record) (*Record, error) {
	for _, name := range sortedKeys(r.Levels) {
		allowed := r.Levels[name]
		v, ok := record.Row.Categorical[name]
		if !ok {
			continue
		}
		if !contains(allowed, v) {
			return nil, fmt.Errorf("%s %q not one of %s", name, v, strings.Join(allowed, "|"))
		}
	}
	return record, nil
}

// LevelNormalizationRule lower-cases and trims categorical values. It returns
// a new record only when something changed.
type LevelNormalizationRule struct{}

func NewLevelNormalizationRule() *LevelNormalizationRule {
	return &LevelNormalizationRule{}
}

func (r *LevelNormalizationRule) Name() string {
	return "level_normalization"
}

func (r *LevelNormalizationRule) Apply(record *Record) (*Record, error) {
	var out *Record
	for name, v := range record.Row.Categorical {
		norm := strings.ToLower(strings.TrimSpace(v))
		if norm == v {
			continue
		}
		if out == nil {
			out = &Record{Line: record.Line, Row: copyRow(record.Row), Target: record.Target}
		}
		out.Row.Categorical[name] = norm
	}
	if out == nil {
		return record, nil
	}
	return out, nil
}

// BinaryTargetRule 二分类标签规则
type BinaryTargetRule struct{}

func NewBinaryTargetRule() *BinaryTargetRule {
	return &BinaryTargetRule{}
}

func (r *BinaryTargetRule) Name() string {
	return "target_validation"
}

func (r *BinaryTargetRule) Apply(record *Record) (*Record, error) {
	if record.Target != 0 && record.Target != 1 {
		return nil, fmt.Errorf("label %v is not 0 or 1", record.Target)
	}
	return record, nil
}

// TargetRangeRule 目标值范围规则
type TargetRangeRule struct {
	Bound
}

func NewTargetRangeRule(lo, hi float64) *TargetRangeRule {
	return &TargetRangeRule{Bound{Min: lo, Max: hi}}
}

func (r *TargetRangeRule) Name() string {
	return "target_validation"
}

func (r *TargetRangeRule) Apply(record *Record) (*Record, error) {
	if record.Target < r.Min || record.Target > r.Max {
		return nil, fmt.Errorf("target %.4g out of range [%g, %g]", record.Target, r.Min, r.Max)
	}
	return record, nil
}

func contains(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
