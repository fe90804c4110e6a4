package calculation

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Action construction errors.
var (
	ErrUnknownOperation  = errors.New("unknown operation")
	ErrInvalidTarget     = errors.New("operation not supported by target")
	ErrInvalidParameters = errors.New("invalid parameters")
	ErrNoEventYear       = errors.New("event has no resolvable start year")
)

// Entity is the closed mutation surface events operate on. *Flow and *Asset
// implement it; asset-only operations additionally require an *Asset target.
type Entity interface {
	Name() string
	StartYear() int
	SetValue(year int, amount decimal.Decimal, span int) error
	SetMultiplier(year int, rate decimal.Decimal) error
	AddToValue(year int, delta decimal.Decimal, span int) error
}

// Op names one operation from an entity's public mutation contract.
type Op string

const (
	OpDeposit       Op = "deposit"
	OpWithdraw      Op = "withdraw"
	OpSetValue      Op = "set_value"
	OpAddToValue    Op = "add_to_value"
	OpSetMultiplier Op = "set_multiplier"
	OpSetCapValue   Op = "set_cap_value"
	OpSetCapDeposit Op = "set_cap_deposit"
)

type paramKind int

const (
	paramMoney paramKind = iota
	paramRate
	paramYear
	paramSpan
)

type paramSpec struct {
	name     string
	kind     paramKind
	required bool
}

// opSignatures is the static table of required parameter shapes, checked
// eagerly at action construction instead of runtime introspection.
var opSignatures = map[Op][]paramSpec{
	OpDeposit:       {{"year", paramYear, true}, {"amount", paramMoney, true}},
	OpWithdraw:      {{"year", paramYear, true}, {"amount", paramMoney, true}},
	OpSetValue:      {{"year", paramYear, true}, {"value", paramMoney, true}, {"span", paramSpan, false}},
	OpAddToValue:    {{"year", paramYear, true}, {"value", paramMoney, true}, {"span", paramSpan, false}},
	OpSetMultiplier: {{"year", paramYear, true}, {"rate", paramRate, true}},
	OpSetCapValue:   {{"cap", paramMoney, true}},
	OpSetCapDeposit: {{"cap", paramMoney, true}},
}

var assetOnlyOps = map[Op]bool{
	OpDeposit:       true,
	OpSetCapValue:   true,
	OpSetCapDeposit: true,
}

// Action binds one operation to a target entity with a named parameter set.
// The target is referenced, not owned.
type Action struct {
	target Entity
	op     Op
	params map[string]any
}

// NewAction validates op against the target's operation set and params
// against the operation's signature. Validation failures are configuration
// errors and fail construction.
func NewAction(target Entity, op Op, params map[string]any) (*Action, error) {
	sig, ok := opSignatures[op]
	if !ok {
		return nil, fmt.Errorf("%q: %w", op, ErrUnknownOperation)
	}
	if target == nil {
		return nil, fmt.Errorf("%q: nil target: %w", op, ErrInvalidTarget)
	}
	if assetOnlyOps[op] {
		if _, isAsset := target.(*Asset); !isAsset {
			return nil, fmt.Errorf("%s has no operation %q: %w", target.Name(), op, ErrInvalidTarget)
		}
	}
	for name := range params {
		if !signatureHas(sig, name) {
			return nil, fmt.Errorf("%s %q: unexpected parameter %q: %w", target.Name(), op, name, ErrInvalidParameters)
		}
	}
	for _, ps := range sig {
		raw, present := params[ps.name]
		if !present {
			if ps.required {
				return nil, fmt.Errorf("%s %q: missing parameter %q: %w", target.Name(), op, ps.name, ErrInvalidParameters)
			}
			continue
		}
		if err := checkParamValue(ps, raw); err != nil {
			return nil, fmt.Errorf("%s %q: %w", target.Name(), op, err)
		}
	}
	return &Action{target: target, op: op, params: params}, nil
}

func signatureHas(sig []paramSpec, name string) bool {
	for _, ps := range sig {
		if ps.name == name {
			return true
		}
	}
	return false
}

func checkParamValue(ps paramSpec, raw any) error {
	switch ps.kind {
	case paramYear, paramSpan:
		if _, ok := raw.(int); !ok {
			return fmt.Errorf("parameter %q must be an integer: %w", ps.name, ErrInvalidParameters)
		}
	default:
		switch raw.(type) {
		case decimal.Decimal, int, int64, float64:
		default:
			return fmt.Errorf("parameter %q must be numeric: %w", ps.name, ErrInvalidParameters)
		}
	}
	return nil
}

func (a *Action) intParam(name string) int {
	v, _ := a.params[name].(int)
	return v
}

func (a *Action) decimalParam(name string) decimal.Decimal {
	switch v := a.params[name].(type) {
	case decimal.Decimal:
		return v
	case int:
		return decimal.NewFromInt(int64(v))
	case int64:
		return decimal.NewFromInt(v)
	case float64:
		return decimal.NewFromFloat(v)
	default:
		return decimal.Zero
	}
}

// year reports the year parameter, if the operation carries one.
func (a *Action) year() (int, bool) {
	raw, ok := a.params["year"]
	if !ok {
		return 0, false
	}
	y, ok := raw.(int)
	return y, ok
}

func (a *Action) apply() error {
	switch a.op {
	case OpDeposit:
		a.target.(*Asset).Deposit(a.intParam("year"), a.decimalParam("amount"))
		return nil
	case OpWithdraw:
		// assets gross up through taxes and can fail; plain flows clamp
		switch target := a.target.(type) {
		case *Asset:
			_, err := target.Withdraw(a.intParam("year"), a.decimalParam("amount"))
			return err
		case *Flow:
			target.Withdraw(a.intParam("year"), a.decimalParam("amount"))
			return nil
		default:
			return fmt.Errorf("%s has no operation %q: %w", a.target.Name(), a.op, ErrInvalidTarget)
		}
	case OpSetValue:
		return a.target.SetValue(a.intParam("year"), a.decimalParam("value"), a.intParam("span"))
	case OpAddToValue:
		return a.target.AddToValue(a.intParam("year"), a.decimalParam("value"), a.intParam("span"))
	case OpSetMultiplier:
		return a.target.SetMultiplier(a.intParam("year"), a.decimalParam("rate"))
	case OpSetCapValue:
		a.target.(*Asset).SetCapValue(a.decimalParam("cap"))
		return nil
	case OpSetCapDeposit:
		a.target.(*Asset).SetCapDeposit(a.decimalParam("cap"))
		return nil
	default:
		return fmt.Errorf("%q: %w", a.op, ErrUnknownOperation)
	}
}

// Event is a named, year-scheduled list of actions. The model applies each
// event exactly once, when the simulation reaches its year.
type Event struct {
	name    string
	year    int
	actions []*Action
	applied bool
}

// NewEvent builds an event. A zero year resolves to the earliest year
// parameter among the actions; construction fails when neither is available.
func NewEvent(name string, year int, actions []*Action) (*Event, error) {
	if year == 0 {
		for _, action := range actions {
			y, ok := action.year()
			if !ok {
				continue
			}
			if year == 0 || y < year {
				year = y
			}
		}
		if year == 0 {
			return nil, fmt.Errorf("%s: %w", name, ErrNoEventYear)
		}
	}
	return &Event{name: name, year: year, actions: actions}, nil
}

func (e *Event) Name() string { return e.name }
func (e *Event) Year() int    { return e.year }

// Apply executes the actions in list order. There is no rollback: a failure
// partway through leaves earlier actions applied.
func (e *Event) Apply() error {
	e.applied = true
	for _, action := range e.actions {
		if err := action.apply(); err != nil {
			return fmt.Errorf("event %s: %w", e.name, err)
		}
	}
	return nil
}
