package errors

import (
	stderrors "errors"

	"github.com/mephi42/gopob/internal/platform/errors/i18n"
)

// UserMessage renders err for display in the given locale. Domain errors are
// formatted from the locale's catalog; other errors render as their text.
func UserMessage(err error, locale string) string {
	if err == nil {
		return ""
	}
	var domainErr *Error
	if !stderrors.As(err, &domainErr) {
		return err.Error()
	}
	metadata := make(map[string]string, len(domainErr.Metadata)+1)
	for key, value := range domainErr.Metadata {
		metadata[key] = value
	}
	metadata["message"] = domainErr.Message
	return i18n.GetCatalog(locale).Format(string(domainErr.Code), metadata)
}
