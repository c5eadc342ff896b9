package catalog

import (
	"errors"
	"fmt"
	"sort"
)

// ErrUnknownMethod is returned when a method name is not in the catalog.
var ErrUnknownMethod = errors.New("unknown method")

// Step is one action in a method template, pinned to a relative day
// offset from the start date (1-indexed; day 1 is the start date).
type Step struct {
	RelativeDay int
	Action      string
	Description string

	// Adjustable marks a step whose date may shift off its nominal day.
	Adjustable bool
	// FlexibleDays lists alternative day offsets, ascending, first equal
	// to RelativeDay. Only meaningful when Adjustable is true.
	FlexibleDays []int
}

// Method is a named assay protocol with a fixed template of dated steps.
type Method struct {
	Name string
	// Adjustable gates whether any step in the method may shift.
	// Regulatory methods ship permanently non-adjustable.
	Adjustable bool
	Steps      []Step
}

// TotalDays returns the largest nominal day offset in the template.
func (m Method) TotalDays() int {
	total := 0
	for _, s := range m.Steps {
		if s.RelativeDay > total {
			total = s.RelativeDay
		}
	}
	return total
}

// Catalog is a static registry of method definitions.
type Catalog struct {
	methods map[string]Method
	order   []string
}

// Summary describes a method for listing surfaces.
type Summary struct {
	Name      string
	TotalDays int
	StepCount int
	Steps     []string
}

// New returns a catalog holding the shipped cytotoxicity methods.
func New() *Catalog {
	return mustCatalog(builtinMethods())
}

func mustCatalog(methods []Method) *Catalog {
	c := &Catalog{methods: make(map[string]Method, len(methods))}
	for _, m := range methods {
		if err := validateMethod(m); err != nil {
			panic(fmt.Sprintf("catalog: %v", err))
		}
		if _, dup := c.methods[m.Name]; dup {
			panic(fmt.Sprintf("catalog: duplicate method %q", m.Name))
		}
		c.methods[m.Name] = m
		c.order = append(c.order, m.Name)
	}
	return c
}

func validateMethod(m Method) error {
	if m.Name == "" {
		return errors.New("method with empty name")
	}
	if len(m.Steps) == 0 {
		return fmt.Errorf("method %q has no steps", m.Name)
	}
	for _, s := range m.Steps {
		if s.RelativeDay < 1 {
			return fmt.Errorf("method %q: step %q has relative day %d", m.Name, s.Action, s.RelativeDay)
		}
		if len(s.FlexibleDays) == 0 {
			continue
		}
		// The window starts at the step's own day and ascends.
		if s.FlexibleDays[0] != s.RelativeDay {
			return fmt.Errorf("method %q: step %q window must start at day %d", m.Name, s.Action, s.RelativeDay)
		}
		if !sort.IntsAreSorted(s.FlexibleDays) {
			return fmt.Errorf("method %q: step %q window is not ascending", m.Name, s.Action)
		}
	}
	return nil
}

// Lookup resolves a method by name.
func (c *Catalog) Lookup(name string) (Method, error) {
	m, ok := c.methods[name]
	if !ok {
		return Method{}, fmt.Errorf("%w: %q", ErrUnknownMethod, name)
	}
	return m, nil
}

// Names returns method names in registration order.
func (c *Catalog) Names() []string {
	return append([]string(nil), c.order...)
}

// Summaries returns a listing view of every method, in registration order.
func (c *Catalog) Summaries() []Summary {
	out := make([]Summary, 0, len(c.order))
	for _, name := range c.order {
		m := c.methods[name]
		s := Summary{Name: m.Name, TotalDays: m.TotalDays(), StepCount: len(m.Steps)}
		for _, st := range m.Steps {
			s.Steps = append(s.Steps, st.Description)
		}
		out = append(out, s)
	}
	return out
}

func builtinMethods() []Method {
	return []Method{
		{
			Name: "7天计数增值度法",
			Steps: []Step{
				{RelativeDay: 1, Action: "上样", Description: "第一天上样"},
				{RelativeDay: 2, Action: "换液", Description: "第二天换液"},
				{RelativeDay: 4, Action: "2天计数", Description: "第四天2天计数"},
				{RelativeDay: 6, Action: "4天计数", Description: "第六天4天计数"},
				{RelativeDay: 9, Action: "7天计数", Description: "第九天7天计数"},
			},
		},
		{
			Name: "USP显微镜法",
			Steps: []Step{
				{RelativeDay: 1, Action: "上样", Description: "第一天上样"},
				{RelativeDay: 2, Action: "换液", Description: "第二天换液"},
				{RelativeDay: 4, Action: "2天观察", Description: "第四天2天观察"},
			},
		},
		{
			Name: "MTT-GB14233.2",
			Steps: []Step{
				{RelativeDay: 1, Action: "上样", Description: "第一天上样"},
				{RelativeDay: 2, Action: "换液", Description: "第二天换液"},
				{RelativeDay: 5, Action: "观察MTT结果", Description: "第五天观察MTT结果"},
			},
		},
		{
			Name: "MTT-ISO等同16886",
			Steps: []Step{
				{RelativeDay: 1, Action: "上样", Description: "第一天上样"},
				{RelativeDay: 2, Action: "换液", Description: "第二天换液"},
				{RelativeDay: 3, Action: "观察MTT结果", Description: "第三天观察MTT结果"},
			},
		},
		{
			Name:       "日本药局方",
			Adjustable: true,
			Steps: []Step{
				{RelativeDay: 1, Action: "上样", Description: "第一天上样"},
				{RelativeDay: 2, Action: "换液", Description: "第二天换液"},
				{
					RelativeDay:  9,
					Action:       "计数",
					Description:  "第九天计数（可选9-11天）",
					Adjustable:   true,
					FlexibleDays: []int{9, 10, 11},
				},
			},
		},
	}
}
