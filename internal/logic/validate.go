package logic

import (
	"fmt"
	"strings"
	"time"

	"github.com/blues/trustfunds/internal/apperror"
	"github.com/blues/trustfunds/internal/chain"
	"github.com/blues/trustfunds/internal/model"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var validate = validator.New()

func requireText(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return apperror.Validation(fmt.Sprintf("%s is required", field))
	}
	return nil
}

func validateStory(story []string) error {
	if len(story) == 0 {
		return apperror.Validation("story must contain at least one paragraph")
	}
	for i, p := range story {
		if strings.TrimSpace(p) == "" {
			return apperror.Validation(fmt.Sprintf("story paragraph %d is empty", i+1))
		}
	}
	return nil
}

func validateGoal(goal decimal.Decimal) error {
	if !goal.IsPositive() {
		return apperror.Validation("goal must be greater than 0")
	}
	if _, err := chain.DecimalToSmallestUnit(goal); err != nil {
		return apperror.Validation("goal has too many decimal places")
	}
	return nil
}

func validateEndDate(endDate, now time.Time) error {
	if endDate.IsZero() {
		return apperror.Validation("endDate is required")
	}
	if !endDate.After(now) {
		return apperror.Validation("endDate must be in the future")
	}
	return nil
}

func validateImage(image string) error {
	if err := validate.Var(image, "required,url"); err != nil {
		return apperror.Validation("image must be an absolute URI")
	}
	return nil
}

func validateCause(cause string) error {
	if !model.IsValidCause(cause) {
		return apperror.Validation(fmt.Sprintf("causeType %q is not allowed", cause))
	}
	return nil
}

func validateRecipient(recipient string) error {
	if err := validate.Var(recipient, "eth_addr"); err != nil {
		return apperror.Validation("recipient must be a 0x-prefixed address")
	}
	return nil
}

// validateMilestones 截止时间与完成百分比都必须严格递增
func validateMilestones(milestones []model.Milestone, now time.Time) error {
	var (
		lastDeadline time.Time
		lastPercent  uint8
	)
	for i, m := range milestones {
		if m.CompletionPercentage == 0 || m.CompletionPercentage > 100 {
			return apperror.Validation(fmt.Sprintf("milestone %d: completionPercentage must be between 1 and 100", i+1))
		}
		if !m.Deadline.After(now) {
			return apperror.Validation(fmt.Sprintf("milestone %d: deadline must be in the future", i+1))
		}
		if i > 0 {
			if !m.Deadline.After(lastDeadline) {
				return apperror.Validation(fmt.Sprintf("milestone %d: deadlines must be increasing", i+1))
			}
			if m.CompletionPercentage <= lastPercent {
				return apperror.Validation(fmt.Sprintf("milestone %d: completionPercentage must be increasing", i+1))
			}
		}
		lastDeadline = m.Deadline
		lastPercent = m.CompletionPercentage
	}
	return nil
}
