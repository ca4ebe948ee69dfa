package dto

import "golang-options/internal/model"

type CreateAutomationRequest struct {
	Name                   string   `json:"name" validate:"required,max=255"`
	AccountID              uint     `json:"account_id"`
	Symbol                 string   `json:"symbol" validate:"required,min=1,max=5,uppercase"`
	StrategyType           string   `json:"strategy_type" validate:"required,oneof=long_call long_put covered_call cash_secured_put"`
	MinConfidence          float64  `json:"min_confidence" validate:"gte=0,lte=1"`
	Quantity               int      `json:"quantity" validate:"omitempty,gte=1"`
	ProfitTargetPct        float64  `json:"profit_target_pct" validate:"gte=0"`
	StopLossPct            float64  `json:"stop_loss_pct" validate:"gte=0"`
	MaxDaysToHold          *int     `json:"max_days_to_hold" validate:"omitempty,gte=1"`
	PreferredDTE           int      `json:"preferred_dte" validate:"gte=0,lte=1095"`
	MinDTE                 int      `json:"min_dte" validate:"gte=0,lte=1095"`
	MaxDTE                 int      `json:"max_dte" validate:"gte=0,lte=1095"`
	TargetDelta            *float64 `json:"target_delta" validate:"omitempty,gte=-1,lte=1"`
	MinDelta               *float64 `json:"min_delta" validate:"omitempty,gte=-1,lte=1"`
	MaxDelta               *float64 `json:"max_delta" validate:"omitempty,gte=-1,lte=1"`
	AllowMultiplePositions bool     `json:"allow_multiple_positions"`
	IsActive               *bool    `json:"is_active"`
}

func (r *CreateAutomationRequest) ToModel(defaultAccountID uint) model.Automation {
	a := model.Automation{
		Name:                   r.Name,
		AccountID:              r.AccountID,
		Symbol:                 r.Symbol,
		StrategyType:           model.StrategyType(r.StrategyType),
		MinConfidence:          r.MinConfidence,
		Quantity:               r.Quantity,
		ProfitTargetPct:        r.ProfitTargetPct,
		StopLossPct:            r.StopLossPct,
		MaxDaysToHold:          r.MaxDaysToHold,
		PreferredDTE:           r.PreferredDTE,
		MinDTE:                 r.MinDTE,
		MaxDTE:                 r.MaxDTE,
		TargetDelta:            r.TargetDelta,
		MinDelta:               r.MinDelta,
		MaxDelta:               r.MaxDelta,
		AllowMultiplePositions: r.AllowMultiplePositions,
		IsActive:               true,
	}
	if a.AccountID == 0 {
		a.AccountID = defaultAccountID
	}
	if a.Quantity == 0 {
		a.Quantity = 1
	}
	if r.IsActive != nil {
		a.IsActive = *r.IsActive
	}
	return a
}

// UpdateAutomationRequest is a partial update; nil fields are left alone.
type UpdateAutomationRequest struct {
	Name                   *string  `json:"name" validate:"omitempty,max=255"`
	Symbol                 *string  `json:"symbol" validate:"omitempty,min=1,max=5,uppercase"`
	StrategyType           *string  `json:"strategy_type" validate:"omitempty,oneof=long_call long_put covered_call cash_secured_put"`
	MinConfidence          *float64 `json:"min_confidence" validate:"omitempty,gte=0,lte=1"`
	Quantity               *int     `json:"quantity" validate:"omitempty,gte=1"`
	ProfitTargetPct        *float64 `json:"profit_target_pct" validate:"omitempty,gte=0"`
	StopLossPct            *float64 `json:"stop_loss_pct" validate:"omitempty,gte=0"`
	MaxDaysToHold          *int     `json:"max_days_to_hold" validate:"omitempty,gte=1"`
	PreferredDTE           *int     `json:"preferred_dte" validate:"omitempty,gte=0,lte=1095"`
	MinDTE                 *int     `json:"min_dte" validate:"omitempty,gte=0,lte=1095"`
	MaxDTE                 *int     `json:"max_dte" validate:"omitempty,gte=0,lte=1095"`
	TargetDelta            *float64 `json:"target_delta" validate:"omitempty,gte=-1,lte=1"`
	MinDelta               *float64 `json:"min_delta" validate:"omitempty,gte=-1,lte=1"`
	MaxDelta               *float64 `json:"max_delta" validate:"omitempty,gte=-1,lte=1"`
	AllowMultiplePositions *bool    `json:"allow_multiple_positions"`
}

// Apply copies the set fields onto a.
func (r *UpdateAutomationRequest) Apply(a *model.Automation) {
	if r.Name != nil {
		a.Name = *r.Name
	}
	if r.Symbol != nil {
		a.Symbol = *r.Symbol
	}
	if r.StrategyType != nil {
		a.StrategyType = model.StrategyType(*r.StrategyType)
	}
	if r.MinConfidence != nil {
		a.MinConfidence = *r.MinConfidence
	}
	if r.Quantity != nil {
		a.Quantity = *r.Quantity
	}
	if r.ProfitTargetPct != nil {
		a.ProfitTargetPct = *r.ProfitTargetPct
	}
	if r.StopLossPct != nil {
		a.StopLossPct = *r.StopLossPct
	}
	if r.MaxDaysToHold != nil {
		a.MaxDaysToHold = r.MaxDaysToHold
	}
	if r.PreferredDTE != nil {
		a.PreferredDTE = *r.PreferredDTE
	}
	if r.MinDTE != nil {
		a.MinDTE = *r.MinDTE
	}
	if r.MaxDTE != nil {
		a.MaxDTE = *r.MaxDTE
	}
	if r.TargetDelta != nil {
		a.TargetDelta = r.TargetDelta
	}
	if r.MinDelta != nil {
		a.MinDelta = r.MinDelta
	}
	if r.MaxDelta != nil {
		a.MaxDelta = r.MaxDelta
	}
	if r.AllowMultiplePositions != nil {
		a.AllowMultiplePositions = *r.AllowMultiplePositions
	}
}

type OpenPositionRequest struct {
	AccountID    uint   `json:"account_id"`
	Symbol       string `json:"symbol" validate:"required,min=1,max=5,uppercase"`
	OptionSymbol string `json:"option_symbol"`
	Side         string `json:"side" validate:"omitempty,oneof=long short"`
	Quantity     int    `json:"quantity" validate:"required,gte=1"`
}

type ClosePositionRequest struct {
	Reason string `json:"reason" validate:"omitempty,max=64"`
}

type ListPositionsQuery struct {
	AccountID    uint   `query:"account_id"`
	AutomationID uint   `query:"automation_id"`
	Status       string `query:"status" validate:"omitempty,oneof=cooldown active closed open"`
}
