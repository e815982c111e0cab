package variable

import (
	"strings"
	"time"
)

// departmentKey is the context key consumed by the DEPARTMENT variable.
const departmentKey = "department"

// DepartmentCode resolves the caller's department from the generation context.
// Parameters:
//   - CODE (default): the department value uppercased
//   - ABBREV: three-letter abbreviation
//   - FULL: the department value as supplied
type DepartmentCode struct {
	abbreviations map[string]string
}

// NewDepartmentCode creates the DEPARTMENT variable with standard abbreviations.
func NewDepartmentCode() *DepartmentCode {
	return &DepartmentCode{
		abbreviations: map[string]string{
			"SALES":       "SLS",
			"MARKETING":   "MKT",
			"ENGINEERING": "ENG",
			"FINANCE":     "FIN",
			"OPERATIONS":  "OPS",
			"LOGISTICS":   "LOG",
			"PROCUREMENT": "PRC",
			"SUPPORT":     "SUP",
			"HR":          "HR",
		},
	}
}

// Name implements CustomVariable.
func (d *DepartmentCode) Name() string { return "DEPARTMENT" }

// Resolve implements CustomVariable. Without a parameter the department value
// is emitted uppercased.
func (d *DepartmentCode) Resolve(ctx Context, ts time.Time) (string, error) {
	return d.ResolveWithParameter(ctx, ts, "CODE")
}

// Validate implements CustomVariable. The department context key is required.
func (d *DepartmentCode) Validate(ctx Context) ValidationResult {
	if v, ok := ctx.Lookup(departmentKey); !ok || strings.TrimSpace(v) == "" {
		return Failf("context key %q is required", departmentKey)
	}
	return OK()
}

// SupportedParameters implements ParameterizedVariable.
func (d *DepartmentCode) SupportedParameters() []string {
	return []string{"CODE", "ABBREV", "FULL"}
}

// ResolveWithParameter implements ParameterizedVariable.
func (d *DepartmentCode) ResolveWithParameter(ctx Context, _ time.Time, param string) (string, error) {
	raw, _ := ctx.Lookup(departmentKey)
	raw = strings.TrimSpace(raw)

	switch strings.ToUpper(param) {
	case "FULL":
		return raw, nil
	case "ABBREV":
		upper := strings.ToUpper(raw)
		if abbr, ok := d.abbreviations[upper]; ok {
			return abbr, nil
		}
		if len(upper) > 3 {
			return upper[:3], nil
		}
		return upper, nil
	default: // CODE
		return strings.ToUpper(raw), nil
	}
}

var _ ParameterizedVariable = (*DepartmentCode)(nil)
