package netshim

import "strconv"

// Option identifies a writable transfer option. Values match libcurl's
// CURLOPT numbering so scripts written against lcurl keep working.
type Option int

const (
	OptProxy          Option = 10004
	OptCookie         Option = 10022
	OptUserAgent      Option = 10018
	OptAcceptEncoding Option = 10102
)

// InfoKey identifies a value recorded by Perform.
type InfoKey int

// InfoResponseCode is CURLINFO_RESPONSE_CODE.
const InfoResponseCode InfoKey = 0x200002

var optionNames = map[Option]string{
	OptAcceptEncoding: "ACCEPT_ENCODING",
	OptCookie:         "COOKIE",
	OptProxy:          "PROXY",
	OptUserAgent:      "USERAGENT",
}

var infoNames = map[InfoKey]string{
	InfoResponseCode: "RESPONSE_CODE",
}

// Supported reports whether o is on the option whitelist.
func (o Option) Supported() bool {
	_, ok := optionNames[o]
	return ok
}

func (o Option) String() string {
	if name, ok := optionNames[o]; ok {
		return name
	}
	return "OPTION(" + strconv.Itoa(int(o)) + ")"
}

// Supported reports whether k can be queried through Info.
func (k InfoKey) Supported() bool {
	_, ok := infoNames[k]
	return ok
}

func (k InfoKey) String() string {
	if name, ok := infoNames[k]; ok {
		return name
	}
	return "INFO(" + strconv.Itoa(int(k)) + ")"
}
