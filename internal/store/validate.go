package store

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"firewall-simulator/internal/model"
	"firewall-simulator/internal/utils"

	"gopkg.in/go-playground/validator.v9"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	v.RegisterValidation("ipcidr", func(fl validator.FieldLevel) bool {
		_, err := utils.ParsePrefix(fl.Field().String())
		return err == nil
	})
	return v
}

// NewRule validates spec and returns the rule it describes under the given id.
// Action and protocol are matched case-insensitively.
func NewRule(id int64, spec model.RuleSpec) (model.Rule, error) {
	spec.Action = model.Action(strings.ToLower(strings.TrimSpace(string(spec.Action))))
	spec.Protocol = model.Protocol(strings.ToLower(strings.TrimSpace(string(spec.Protocol))))
	spec.SrcIP = strings.TrimSpace(spec.SrcIP)
	spec.DstIP = strings.TrimSpace(spec.DstIP)

	if err := validate.Struct(&spec); err != nil {
		return model.Rule{}, toValidationError(err)
	}

	priority := model.DefaultPriority
	if spec.Priority != nil {
		priority = *spec.Priority
	}
	return model.Rule{
		ID:       id,
		Action:   spec.Action,
		SrcIP:    spec.SrcIP,
		DstIP:    spec.DstIP,
		Port:     spec.Port,
		Protocol: spec.Protocol,
		Priority: priority,
	}, nil
}

func toValidationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return &model.ValidationError{Field: "rule", Reason: err.Error()}
	}
	fe := fieldErrs[0]
	var reason string
	switch fe.Tag() {
	case "required":
		reason = "is required"
	case "oneof":
		reason = fmt.Sprintf("must be one of [%s]", fe.Param())
	case "min", "max":
		reason = "must be between 1 and 65535"
	case "ipcidr":
		reason = "must be an IP address or CIDR block"
	default:
		reason = fmt.Sprintf("failed %q check", fe.Tag())
	}
	var value any
	if fe.Tag() != "required" {
		value = fe.Value()
	}
	return &model.ValidationError{Field: fe.Field(), Value: value, Reason: reason}
}
