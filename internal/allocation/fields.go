package allocation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/moneymap/internal/graph"
)

func (e *Editor) resetFields(n graph.Node) {
	balance, amount, cadence, rate := fieldValues(n)
	e.Balance.Reset(balance)
	e.Amount.Reset(amount)
	e.Cadence.Reset(cadence)
	e.ReturnRate.Reset(rate)
}

func (e *Editor) syncFields(n graph.Node) {
	balance, amount, cadence, rate := fieldValues(n)
	e.Balance.Sync(balance)
	e.Amount.Sync(amount)
	e.Cadence.Sync(cadence)
	e.ReturnRate.Sync(rate)
}

func fieldValues(n graph.Node) (balance, amount, cadence, rate string) {
	balance = formatNumber(n.Balance)
	if n.Inflow != nil {
		amount = formatNumber(&n.Inflow.Amount)
		cadence = string(n.Inflow.Cadence)
	}
	if n.ReturnRate != nil || graph.DefaultReturnRate(n) != 0 {
		r := graph.EffectiveReturnRate(n)
		rate = percentOf(&r)
	}
	return balance, amount, cadence, rate
}

// ErrNotIncome is returned when an inflow is committed on a node that is
// not an income node.
var ErrNotIncome = errors.New("only income nodes have an amount and cadence")

// CommitBalance writes the balance field to the node. Empty text clears the
// balance.
func (e *Editor) CommitBalance() error {
	return e.commitField(&e.Balance, func(n *graph.Node, text string) error {
		v, err := graph.ParseNumber("balance", text)
		if err != nil {
			return err
		}
		n.Balance = v
		return nil
	})
}

// CommitAmount writes the income amount field to the node. Empty text
// removes the inflow; a new inflow defaults to a monthly cadence.
func (e *Editor) CommitAmount() error {
	return e.commitField(&e.Amount, func(n *graph.Node, text string) error {
		v, err := graph.ParseNumber("amount", text)
		if err != nil {
			return err
		}
		switch {
		case v == nil:
			n.Inflow = nil
		case n.Kind != graph.KindIncome:
			return ErrNotIncome
		case n.Inflow == nil:
			n.Inflow = &graph.Inflow{Amount: *v, Cadence: graph.CadenceMonthly}
		default:
			n.Inflow.Amount = *v
		}
		return nil
	})
}

// CommitCadence writes the cadence field to the node.
func (e *Editor) CommitCadence() error {
	return e.commitField(&e.Cadence, func(n *graph.Node, text string) error {
		c := graph.Cadence(strings.ToLower(strings.TrimSpace(text)))
		if !c.Valid() {
			return fmt.Errorf("cadence must be daily, weekly or monthly")
		}
		if n.Kind != graph.KindIncome {
			return ErrNotIncome
		}
		if n.Inflow == nil {
			n.Inflow = &graph.Inflow{}
		}
		n.Inflow.Cadence = c
		return nil
	})
}

// CommitReturnRate writes the return rate field, entered as a percentage,
// to the node. Empty text clears the explicit rate, and the field then shows
// the default for the node's kind, category and pod type.
func (e *Editor) CommitReturnRate() error {
	return e.commitField(&e.ReturnRate, func(n *graph.Node, text string) error {
		v, err := graph.ParseNumber("return rate", trimPercent(text))
		if err != nil {
			return err
		}
		if v == nil {
			n.ReturnRate = nil
			return nil
		}
		rate := rateFromPercent(*v)
		n.ReturnRate = &rate
		return nil
	})
}

// CommitFields commits every dirty field and returns the errors joined.
func (e *Editor) CommitFields() error {
	return errors.Join(
		e.CommitBalance(),
		e.CommitAmount(),
		e.CommitCadence(),
		e.CommitReturnRate(),
	)
}

// commitField applies a dirty field through apply. A parse failure leaves
// the field dirty with an inline message and the node untouched.
func (e *Editor) commitField(f *Field, apply func(*graph.Node, string) error) error {
	if e.nodeID == "" {
		return ErrNoFocus
	}
	if !f.Dirty() {
		return nil
	}

	node, ok := e.canvas.Node(e.nodeID)
	if !ok {
		return fmt.Errorf("commit field: unknown node %q", e.nodeID)
	}
	if err := apply(&node, f.Value()); err != nil {
		f.fail(messageOf(err))
		return err
	}
	if err := e.canvas.UpdateNode(e.nodeID, func(n *graph.Node) { *n = node }); err != nil {
		f.fail(messageOf(err))
		return err
	}
	f.committed()

	if updated, ok := e.canvas.Node(e.nodeID); ok {
		e.syncFields(updated)
	}
	return nil
}

func messageOf(err error) string {
	var ve *graph.ValidationError
	if errors.As(err, &ve) {
		return ve.Message
	}
	return err.Error()
}
