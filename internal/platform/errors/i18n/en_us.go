package i18n

import "golang.org/x/text/language"

// Error codes must match the codes defined in internal/platform/errors/codes.go.
// These are duplicated as strings to avoid an import cycle.
const (
	CodeUnknown               = "UNKNOWN"
	CodeTransport             = "TRANSPORT_ERROR"
	CodeUnsupportedOption     = "UNSUPPORTED_OPTION"
	CodeUnsetInfo             = "UNSET_INFO"
	CodeScriptFailure         = "SCRIPT_FAILURE"
	CodeInvalidItemDescriptor = "INVALID_ITEM_DESCRIPTOR"
	CodeNotFound              = "NOT_FOUND"
)

// Templates receive the error metadata plus the error text under "message".
var enUSMessages = map[Code]string{
	CodeUnknown:               "{{.message}}",
	CodeTransport:             "download of {{.url}} failed: {{.message}}",
	CodeUnsupportedOption:     "the engine requested unsupported transfer option {{.option}}",
	CodeUnsetInfo:             "the engine read transfer info {{.info}} before the transfer ran",
	CodeScriptFailure:         "Path of Building script error: {{.message}}",
	CodeInvalidItemDescriptor: "candidate item {{.candidate}} could not be parsed: {{.message}}",
	CodeNotFound:              "{{.message}}",
}

var deDEMessages = map[Code]string{
	CodeUnknown:               "{{.message}}",
	CodeTransport:             "Download von {{.url}} fehlgeschlagen: {{.message}}",
	CodeUnsupportedOption:     "die Engine verlangte die nicht unterstützte Transferoption {{.option}}",
	CodeUnsetInfo:             "die Engine las Transferinfo {{.info}} vor dem Transfer",
	CodeScriptFailure:         "Path-of-Building-Skriptfehler: {{.message}}",
	CodeInvalidItemDescriptor: "Kandidat {{.candidate}} ist kein gültiger Gegenstand: {{.message}}",
	CodeNotFound:              "{{.message}}",
}

func init() {
	RegisterCatalog(NewCatalog(BaseLocale, enUSMessages))
	RegisterCatalog(NewCatalog(language.German, deDEMessages))
}
