// Package analytics folds stored simulations into dashboard figures.
package analytics

import (
	"sort"
	"strings"
	"time"

	"github.com/iwvelando/credit-simulator/internal/storage"
	"github.com/iwvelando/credit-simulator/pkg/constants"
	"github.com/iwvelando/credit-simulator/pkg/datetime"
	"github.com/iwvelando/credit-simulator/pkg/format"
	"github.com/shopspring/decimal"
)

// AllUsers disables the user filter.
const AllUsers = "all"

// InstallmentCount is how often an installment count was offered.
type InstallmentCount struct {
	Installments int `json:"installmentCount"`
	Count        int `json:"count"`
}

// UserCount is the number of simulations made by a user.
type UserCount struct {
	User  string `json:"user"`
	Count int    `json:"count"`
}

// TypeCount is the number of simulations of a category.
type TypeCount struct {
	Type  string `json:"name"`
	Count int    `json:"value"`
}

// UserTotal is the credit value simulated by a user.
type UserTotal struct {
	User         string  `json:"user"`
	Total        float64 `json:"total"`
	TotalDisplay string  `json:"totalDisplay"`
}

// Summary is the analytics panel data.
type Summary struct {
	SimulationsToday        int                `json:"simulationsToday"`
	AverageCreditValue      float64            `json:"averageValue"`
	AverageCreditDisplay    string             `json:"averageValueDisplay"`
	TopUser                 string             `json:"topUser"`
	InstallmentDistribution []InstallmentCount `json:"installmentDistribution"`
	UserSimulations         []UserCount        `json:"userSimulations"`
	SimulationsByType       []TypeCount        `json:"simulationsByType"`
	UserValues              []UserTotal        `json:"userValues"`
	UniqueUsers             []string           `json:"uniqueUsers"`
	Total                   int                `json:"total"`
}

// Summarize aggregates records, keeping only those by userFilter unless it is
// empty or AllUsers. "Today" is the calendar day of now in now's location.
// UniqueUsers always covers every record so the filter can be changed.
func Summarize(records []storage.Record, userFilter string, now time.Time) Summary {
	userFilter = strings.TrimSpace(userFilter)
	filtering := userFilter != "" && userFilter != AllUsers

	summary := Summary{
		TopUser:                 constants.FallbackNotAvailable,
		InstallmentDistribution: []InstallmentCount{},
		UserSimulations:         []UserCount{},
		SimulationsByType:       []TypeCount{},
		UserValues:              []UserTotal{},
		UniqueUsers:             []string{},
	}

	seenUsers := make(map[string]bool)
	userIndex := make(map[string]int)
	typeIndex := make(map[string]int)
	installments := make(map[int]int)
	totals := make(map[string]decimal.Decimal)
	var userOrder []string
	sum := decimal.Zero

	for _, record := range records {
		user := strings.TrimSpace(record.UserDisplayName)
		if user != "" && !seenUsers[user] {
			seenUsers[user] = true
			summary.UniqueUsers = append(summary.UniqueUsers, user)
		}
		if filtering && user != userFilter {
			continue
		}
		summary.Total++

		if !record.CreatedAt.IsZero() && datetime.SameDay(record.CreatedAt, now, now.Location()) {
			summary.SimulationsToday++
		}

		credit := decimal.NewFromFloat(record.CreditValue)
		sum = sum.Add(credit)

		if user == "" {
			user = constants.UnidentifiedUser
		}
		if i, ok := userIndex[user]; ok {
			summary.UserSimulations[i].Count++
		} else {
			userIndex[user] = len(summary.UserSimulations)
			summary.UserSimulations = append(summary.UserSimulations, UserCount{User: user, Count: 1})
			userOrder = append(userOrder, user)
		}
		totals[user] = totals[user].Add(credit)

		for _, installment := range record.Installments {
			if installment.Count > 0 {
				installments[installment.Count]++
			}
		}

		kind := strings.TrimSpace(record.Type)
		if kind == "" {
			kind = constants.UnspecifiedType
		}
		if i, ok := typeIndex[kind]; ok {
			summary.SimulationsByType[i].Count++
		} else {
			typeIndex[kind] = len(summary.SimulationsByType)
			summary.SimulationsByType = append(summary.SimulationsByType, TypeCount{Type: kind, Count: 1})
		}
	}

	if summary.Total > 0 {
		average := sum.Div(decimal.NewFromInt(int64(summary.Total)))
		summary.AverageCreditValue = average.Round(constants.DecimalPlaces).InexactFloat64()
	}
	summary.AverageCreditDisplay = format.Currency(summary.AverageCreditValue)

	for count, occurrences := range installments {
		summary.InstallmentDistribution = append(summary.InstallmentDistribution, InstallmentCount{Installments: count, Count: occurrences})
	}
	sort.Slice(summary.InstallmentDistribution, func(i, j int) bool {
		return summary.InstallmentDistribution[i].Installments < summary.InstallmentDistribution[j].Installments
	})

	sort.SliceStable(summary.UserSimulations, func(i, j int) bool {
		return summary.UserSimulations[i].Count > summary.UserSimulations[j].Count
	})
	if len(summary.UserSimulations) > 0 {
		summary.TopUser = summary.UserSimulations[0].User
	}

	for _, user := range userOrder {
		total := totals[user].Round(constants.DecimalPlaces)
		summary.UserValues = append(summary.UserValues, UserTotal{
			User:         user,
			Total:        total.InexactFloat64(),
			TotalDisplay: format.Currency(total.InexactFloat64()),
		})
	}
	sort.SliceStable(summary.UserValues, func(i, j int) bool {
		return summary.UserValues[i].Total > summary.UserValues[j].Total
	})

	return summary
}
