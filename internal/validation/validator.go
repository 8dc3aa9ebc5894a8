// Mediatrack - Media Server Webhook Ingestion and Watch Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediatrack

// Package validation checks decoded webhook payloads with go-playground/validator v10.
//
// Payload structs in the models package carry `validate` tags. Field names in
// error messages use the JSON key, so a Plex payload without an event reports
// "event is required" rather than the Go field name.
//
//	var hook models.PlexWebhook
//	if verr := validation.ValidateStruct(&hook); verr != nil {
//	    return &normalize.ParseError{Source: models.SourcePlex, Field: verr.FirstField(), Err: verr}
//	}
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// FieldError describes one failed constraint.
type FieldError struct {
	Field   string
	Tag     string
	Param   string
	Message string
}

// Error implements the error interface.
func (e FieldError) Error() string {
	return e.Message
}

// PayloadError aggregates all constraint failures of one struct.
type PayloadError struct {
	Fields []FieldError
}

// Error joins the individual messages.
func (pe *PayloadError) Error() string {
	if len(pe.Fields) == 0 {
		return "validation failed"
	}
	messages := make([]string, 0, len(pe.Fields))
	for _, f := range pe.Fields {
		messages = append(messages, f.Message)
	}
	return strings.Join(messages, "; ")
}

// FirstField returns the name of the first failing field, or "".
func (pe *PayloadError) FirstField() string {
	if len(pe.Fields) == 0 {
		return ""
	}
	return pe.Fields[0].Field
}

// Details renders the failures for an API error body.
func (pe *PayloadError) Details() map[string]interface{} {
	fields := make([]map[string]string, 0, len(pe.Fields))
	for _, f := range pe.Fields {
		fields = append(fields, map[string]string{
			"field":   f.Field,
			"tag":     f.Tag,
			"message": f.Message,
		})
	}
	return map[string]interface{}{"fields": fields}
}

// GetValidator returns the process-wide validator. The instance caches struct
// metadata, so it is created once.
func GetValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(jsonFieldName)
	})
	return validate
}

// jsonFieldName reports the JSON key of a struct field.
func jsonFieldName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	switch name {
	case "-":
		return ""
	case "":
		return fld.Name
	default:
		return name
	}
}

// ValidateStruct validates s and returns nil when every constraint holds.
func ValidateStruct(s interface{}) *PayloadError {
	err := GetValidator().Struct(s)
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return &PayloadError{Fields: []FieldError{{
			Field:   "unknown",
			Tag:     "unknown",
			Message: err.Error(),
		}}}
	}

	fields := make([]FieldError, len(validationErrs))
	for i, fe := range validationErrs {
		fields[i] = FieldError{
			Field:   fe.Field(),
			Tag:     fe.Tag(),
			Param:   fe.Param(),
			Message: translateError(fe),
		}
	}
	return &PayloadError{Fields: fields}
}

var errorMessageTemplates = map[string]string{
	"required": "%s is required",
	"url":      "%s must be a valid URL",
	"numeric":  "%s must be numeric",
}

var errorMessageWithParam = map[string]string{
	"oneof": "%s must be one of: %s",
	"gte":   "%s must be greater than or equal to %s",
	"lte":   "%s must be less than or equal to %s",
	"min":   "%s must be at least %s",
	"max":   "%s must be at most %s",
	"len":   "%s must have length %s",
}

func translateError(fe validator.FieldError) string {
	if template, ok := errorMessageTemplates[fe.Tag()]; ok {
		return fmt.Sprintf(template, fe.Field())
	}
	if template, ok := errorMessageWithParam[fe.Tag()]; ok {
		return fmt.Sprintf(template, fe.Field(), fe.Param())
	}
	return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
}
