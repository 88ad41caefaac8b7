package pob

import (
	"errors"

	"github.com/mephi42/gopob/internal/netshim"
)

const (
	charactersURL = "https://www.pathofexile.com/character-window/get-characters?accountName=acct"
	profileURL    = "https://www.pathofexile.com/account/view-profile/acct"
	passiveURL    = "https://www.pathofexile.com/character-window/get-passive-skills?accountName=acct&character=Arcmancer"
	itemsURL      = "https://www.pathofexile.com/character-window/get-items?accountName=acct&character=Arcmancer"
)

// siteTransport serves canned bodies by URL and records requests in order.
type siteTransport struct {
	pages     map[string]string
	requested []string
}

func newSiteTransport() *siteTransport {
	return &siteTransport{pages: map[string]string{
		charactersURL: "Zapper, Arcmancer",
		profileURL:    "public",
		passiveURL:    "AAAABgMA",
		itemsURL: "Weapon 1=Rusted Sword\n" +
			"Belt=Leather Belt|+40 to maximum Life\n" +
			"Skill=Arc=300000\n" +
			"Skill=Spark=450000\n",
	}}
}

func (t *siteTransport) NewHandle() netshim.Handle {
	return &siteHandle{transport: t}
}

type siteHandle struct {
	transport *siteTransport
	url       string
	write     func([]byte) int
	code      int
}

func (h *siteHandle) SetOption(opt netshim.Option, value string) error { return nil }

func (h *siteHandle) SetURL(url string) { h.url = url }

func (h *siteHandle) SetWriteFunction(fn func([]byte) int) { h.write = fn }

func (h *siteHandle) ResponseCode() int { return h.code }

func (h *siteHandle) Close() {}

func (h *siteHandle) Perform() error {
	t := h.transport
	t.requested = append(t.requested, h.url)
	body, ok := t.pages[h.url]
	if !ok {
		h.code = 404
		return nil
	}
	h.code = 200
	if h.write != nil && h.write([]byte(body)) != len(body) {
		return errors.New("failed writing received data")
	}
	return nil
}
