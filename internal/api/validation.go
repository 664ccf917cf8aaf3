// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package api

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/jaycherian/movielab/internal/core/model"
)

var registerOnce sync.Once

// RegisterValidators adds the clip option rules to gin's validator:
//
//	aspectratio   one of model.AspectRatios, empty allowed
//	clipduration  one of model.Durations, empty allowed
func RegisterValidators() error {
	var err error
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			err = fmt.Errorf("unexpected validator engine %T", binding.Validator.Engine())
			return
		}
		v.RegisterTagNameFunc(fieldName)
		if err = v.RegisterValidation("aspectratio", optional(model.ValidAspectRatio)); err != nil {
			return
		}
		err = v.RegisterValidation("clipduration", optional(model.ValidDuration))
	})
	return err
}

// fieldName reports fields by their json or form name.
func fieldName(f reflect.StructField) string {
	for _, tag := range []string{"json", "form"} {
		name, _, _ := strings.Cut(f.Tag.Get(tag), ",")
		if name == "-" {
			return ""
		}
		if name != "" {
			return name
		}
	}
	return f.Name
}

func optional(valid func(string) bool) validator.Func {
	return func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return s == "" || valid(s)
	}
}

// validationMessage renders validation errors for clients.
func validationMessage(errs validator.ValidationErrors) string {
	parts := make([]string, 0, len(errs))
	for _, fe := range errs {
		switch fe.Tag() {
		case "required":
			parts = append(parts, fe.Field()+" is required")
		case "aspectratio":
			parts = append(parts, fmt.Sprintf("%s must be one of %s", fe.Field(), strings.Join(model.AspectRatios, ", ")))
		case "clipduration":
			parts = append(parts, fmt.Sprintf("%s must be one of %s", fe.Field(), strings.Join(model.Durations, ", ")))
		default:
			parts = append(parts, fmt.Sprintf("%s is invalid", fe.Field()))
		}
	}
	return strings.Join(parts, "; ")
}
