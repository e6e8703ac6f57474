package pipeline

import (
	"fmt"

	"gonum.org/v1/gonum/stat"
)

// Action is what the resolver does with a missing field.
type Action string

const (
	ActionDrop       Action = "drop"
	ActionFill       Action = "fill"
	ActionImputeMean Action = "impute_mean"
	ActionLeave      Action = "leave"
)

// FieldPolicy is one row of a policy table.
type FieldPolicy struct {
	Field  string `mapstructure:"field" json:"field"`
	Action Action `mapstructure:"action" json:"action"`
	// Value is the default for ActionFill, coerced like raw input.
	Value string `mapstructure:"value" json:"value,omitempty"`
}

// Policy is an ordered policy table; rows apply in declaration order.
type Policy []FieldPolicy

// PolicyChecker validates a single policy row against a record schema.
type PolicyChecker interface {
	CheckPolicy(FieldPolicy) error
}

// Validate checks every row against the schema.
func (p Policy) Validate(s PolicyChecker) error {
	seen := make(map[string]bool, len(p))
	for i, fp := range p {
		if seen[fp.Field] {
			return fmt.Errorf("policy row %d: field %q listed twice", i, fp.Field)
		}
		seen[fp.Field] = true
		if err := s.CheckPolicy(fp); err != nil {
			return fmt.Errorf("policy row %d: %w", i, err)
		}
	}
	return nil
}

// CheckPolicy implements PolicyChecker.
func (s *Schema[T]) CheckPolicy(fp FieldPolicy) error {
	f, ok := s.Field(fp.Field)
	if !ok {
		return fmt.Errorf("unknown %s field %q", s.Name, fp.Field)
	}
	if s.required(fp.Field) && fp.Action != ActionDrop && fp.Action != ActionFill {
		return fmt.Errorf("%s.%s is required; only drop or fill apply", s.Name, fp.Field)
	}
	switch fp.Action {
	case ActionDrop, ActionLeave:
	case ActionFill:
		var scratch T
		if err := s.Fill(&scratch, fp.Field, fp.Value); err != nil {
			return err
		}
	case ActionImputeMean:
		if !f.Numeric() {
			return fmt.Errorf("%s.%s is %s and cannot be imputed with a mean", s.Name, fp.Field, f.Kind)
		}
	default:
		return fmt.Errorf("unknown action %q for %s.%s", fp.Action, s.Name, fp.Field)
	}
	return nil
}

// ResolveStats is the data-quality outcome of one resolver pass.
type ResolveStats struct {
	Input       int            `json:"input"`
	Output      int            `json:"output"`
	Dropped     int            `json:"dropped"`
	DroppedBy   map[string]int `json:"droppedBy"`
	Filled      map[string]int `json:"filled"`
	Imputed     map[string]int `json:"imputed"`
	Unimputable map[string]int `json:"unimputable"`
	// Skipped lists rows that did not validate and were ignored.
	Skipped []string `json:"skipped,omitempty"`
}

func (s *Schema[T]) required(name string) bool {
	for _, r := range s.Required {
		if r == name {
			return true
		}
	}
	return false
}

// effective prepends a drop row for every required field that the caller
// does not handle with a valid drop or fill row.
func effective[T any](s *Schema[T], p Policy) Policy {
	handled := make(map[string]bool, len(p))
	for _, fp := range p {
		if (fp.Action == ActionDrop || fp.Action == ActionFill) && s.CheckPolicy(fp) == nil {
			handled[fp.Field] = true
		}
	}
	out := make(Policy, 0, len(s.Required)+len(p))
	for _, name := range s.Required {
		if !handled[name] {
			out = append(out, FieldPolicy{Field: name, Action: ActionDrop})
		}
	}
	return append(out, p...)
}

// Resolve applies the policy table in one pass. A record dropped by a row
// is gone for every later row, and means are taken over the records still
// alive when the impute row runs.
func Resolve[T any](records []T, s *Schema[T], policy Policy) ([]T, ResolveStats) {
	stats := ResolveStats{
		Input:       len(records),
		DroppedBy:   make(map[string]int),
		Filled:      make(map[string]int),
		Imputed:     make(map[string]int),
		Unimputable: make(map[string]int),
	}
	alive := append(make([]T, 0, len(records)), records...)

	for _, fp := range effective(s, policy) {
		if err := s.CheckPolicy(fp); err != nil {
			stats.Skipped = append(stats.Skipped, err.Error())
			continue
		}
		f, _ := s.Field(fp.Field)

		switch fp.Action {
		case ActionDrop:
			kept := alive[:0:0]
			for i := range alive {
				if f.Present(&alive[i]) {
					kept = append(kept, alive[i])
				}
			}
			if n := len(alive) - len(kept); n > 0 {
				stats.DroppedBy[f.Name] += n
				stats.Dropped += n
			}
			alive = kept

		case ActionFill:
			for i := range alive {
				if f.Present(&alive[i]) {
					continue
				}
				if s.Fill(&alive[i], f.Name, fp.Value) == nil {
					stats.Filled[f.Name]++
				}
			}

		case ActionImputeMean:
			var values []float64
			missing := 0
			for i := range alive {
				if v, ok := f.Number(&alive[i]); ok {
					values = append(values, v)
				} else {
					missing++
				}
			}
			if missing == 0 {
				continue
			}
			if len(values) == 0 {
				stats.Unimputable[f.Name] += missing
				continue
			}
			mean := stat.Mean(values, nil)
			for i := range alive {
				if !f.Present(&alive[i]) {
					f.setNum(&alive[i], mean)
					stats.Imputed[f.Name]++
				}
			}
		}
	}

	stats.Output = len(alive)
	return alive, stats
}
