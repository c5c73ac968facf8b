// Copyright (c) 2026 Nimbus Pay Ltd. All rights reserved.
// Use of this source code is governed by the Elastic License 2.0
// that can be found in the LICENSE file.

package httpx

import (
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/nimbuspay/ledger-core/pkg/apperr"
)

var (
	validatorOnce   sync.Once
	structValidator *validator.Validate
)

func instance() *validator.Validate {
	validatorOnce.Do(func() {
		structValidator = validator.New()
		structValidator.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}

			return name
		})
	})

	return structValidator
}

// ValidateStruct runs s's `validate` struct tags. The first failing
// field is reported as an apperr.Validation error keyed by the field's
// json name.
func ValidateStruct(s any) error {
	if err := instance().Struct(s); err != nil {
		fieldErrs, ok := err.(validator.ValidationErrors)
		if !ok || len(fieldErrs) == 0 {
			return apperr.Validation("malformed request body")
		}

		fe := fieldErrs[0]

		return apperr.Validation("field %q failed validation %q", fe.Field(), fe.Tag())
	}

	return nil
}
