package tracker

import "github.com/wonny/sheetalert/internal/contracts"

// Evaluate decides whether a price move crosses a bound in the alerting
// direction: upward through upper, or downward through lower. Landing
// exactly on upper, or moving up onto lower, does not alert.
func Evaluate(lower, upper, oldPrice, newPrice float64) *contracts.Alert {
	crossedUp := oldPrice <= upper && upper < newPrice
	crossedDown := newPrice < lower && lower <= oldPrice

	if !crossedUp && !crossedDown {
		return nil
	}

	return &contracts.Alert{
		Lower: lower,
		Upper: upper,
		Old:   oldPrice,
		New:   newPrice,
	}
}
