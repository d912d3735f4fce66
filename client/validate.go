package client

import (
	"errors"
	"net"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

var validate *validator.Validate
var translator ut.Translator

func init() {
	validate = validator.New()
	var ok bool
	translator, ok = ut.New(en.New(), en.New()).GetTranslator("en")
	if !ok {
		panic("client: failed to get 'en' translator")
	}

	if err := en_translations.RegisterDefaultTranslations(validate, translator); err != nil {
		panic(err)
	}

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}

		return name
	})

	if err := validate.RegisterValidation("endpoint", validEndpoint); err != nil {
		panic(err)
	}
}

// validEndpoint accepts a hostname or IPv4 address, optionally with a
// port, and a bracketed IPv6 address with or without a port.
func validEndpoint(fl validator.FieldLevel) bool {
	v := fl.Field().String()
	if validate.Var(v, "hostname|ipv4") == nil {
		return true
	}
	if strings.HasPrefix(v, "[") && strings.HasSuffix(v, "]") {
		return validate.Var(v[1:len(v)-1], "ipv6") == nil
	}

	host, port, err := net.SplitHostPort(v)
	if err != nil {
		return false
	}
	if n, err := strconv.ParseUint(port, 10, 16); err != nil || n == 0 {
		return false
	}
	if strings.HasPrefix(v, "[") {
		return validate.Var(host, "ipv6") == nil
	}

	return validate.Var(host, "hostname|ipv4") == nil
}

// validateConfig checks cfg against its declared tags, reporting every
// failing field in a single *ConfigurationError.
func validateConfig(cfg Config) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}

	var verrors validator.ValidationErrors
	if !errors.As(err, &verrors) {
		return &ConfigurationError{Err: err}
	}

	fields := make(map[string]string, len(verrors))
	for _, verror := range verrors {
		fields[verror.Field()] = customErrForTag(verror.Tag(), verror)
	}

	return &ConfigurationError{Fields: fields}
}

func customErrForTag(tag string, verror validator.FieldError) string {
	switch tag {
	case "required":
		return "This field is required"
	case "endpoint":
		return "Must be a host, host:port or [IPv6]:port"
	default:
		return verror.Translate(translator)
	}
}
