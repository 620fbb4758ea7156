// Package flow provides the compiled-in default flow definition.
package flow

import "github.com/menuflow/menuflow/internal/models"

// Step ids of the default phone-shop flow.
const (
	DefaultStepWelcome    = "welcome"
	DefaultStepAskBrand   = "ask_brand"
	DefaultStepAskBudget  = "ask_budget"
	DefaultStepConfirm    = "confirm"
	DefaultStepSellModel  = "sell_model"
	DefaultStepSellQuote  = "sell_quote"
	DefaultStepRepairWhat = "repair_what"
	DefaultStepDone       = "done"
)

// Default returns the compiled-in phone-shop flow, used when no flow file is
// configured.
func Default() *Flow {
	return MustNew("phone-shop", DefaultStepWelcome,
		[]string{"buy", "sell", "repair"},
		[]models.Step{
			{
				ID:            DefaultStepWelcome,
				Kind:          models.StepKindButton,
				Text:          "Welcome to the phone shop! What would you like to do today?",
				StoreKey:      "main_choice",
				DefaultIntent: "browse",
				Options: []models.Option{
					{ID: "buy", Label: "Buy a phone"},
					{ID: "sell", Label: "Sell a phone"},
					{ID: "repair", Label: "Repair a phone"},
				},
				Transitions: map[string]string{
					"buy":    DefaultStepAskBrand,
					"sell":   DefaultStepSellModel,
					"repair": DefaultStepRepairWhat,
				},
			},
			{
				ID:       DefaultStepAskBrand,
				Kind:     models.StepKindInput,
				Text:     "Great! Which phone brand are you looking for?",
				StoreKey: "brand",
				Next:     DefaultStepAskBudget,
			},
			{
				ID:       DefaultStepAskBudget,
				Kind:     models.StepKindInput,
				Text:     "What is your budget for the {{brand}}?",
				StoreKey: "budget",
				Next:     DefaultStepConfirm,
			},
			{
				ID:   DefaultStepConfirm,
				Kind: models.StepKindEnd,
				Text: "Perfect! We'll look for a {{brand}} within {{budget}} and get back to you. Send \"menu\" to start over.",
			},
			{
				ID:       DefaultStepSellModel,
				Kind:     models.StepKindInput,
				Text:     "Which phone model would you like to sell?",
				StoreKey: "sell_model",
				Next:     DefaultStepSellQuote,
			},
			{
				ID:   DefaultStepSellQuote,
				Kind: models.StepKindMessage,
				Text: "Thanks! We'll appraise your {{sell_model}} and text you a quote.",
				Next: DefaultStepDone,
			},
			{
				ID:       DefaultStepRepairWhat,
				Kind:     models.StepKindInput,
				Text:     "Sorry to hear that. What needs to be repaired?",
				StoreKey: "repair_issue",
				Next:     DefaultStepDone,
			},
			{
				ID:   DefaultStepDone,
				Kind: models.StepKindEnd,
				Text: "Thanks for visiting the phone shop! Send \"menu\" any time to start over.",
			},
		})
}
