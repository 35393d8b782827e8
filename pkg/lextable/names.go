package lextable

import "github.com/WhileEndless/hparsecore/pkg/token"

// defaultEntries is the closed (name -> token) table the parse core
// recognizes, mirroring the header/method name set carried in
// parsers.c's lextable_h1 (itself generated from a name list off the
// methods[] array and the WSI_TOKEN_* header names). Each name includes
// its wire delimiter (the space after a method, the colon after a
// header name), so the automaton reaches a terminal entry only once the
// header parser has fed it that delimiter (spec §4.4).
var defaultEntries = []Entry{
	{"get ", token.GetURI},
	{"post ", token.PostURI},
	{"options ", token.OptionsURI},
	{"put ", token.PutURI},
	{"patch ", token.PatchURI},
	{"delete ", token.DeleteURI},
	{"connect ", token.Connect},
	{"head ", token.HeadURI},

	{"host:", token.Host},
	{"connection:", token.Connection},
	{"upgrade:", token.Upgrade},
	{"origin:", token.Origin},
	{"x-webSocket-origin:", token.SecWebSocketOriginLegacy},
	{"sec-websocket-key:", token.SecWebSocketKey},
	{"sec-websocket-version:", token.SecWebSocketVersion},
	{"sec-websocket-protocol:", token.SecWebSocketProtocol},
	{"sec-websocket-extensions:", token.SecWebSocketExtensions},
	{"sec-websocket-accept:", token.SecWebSocketAccept},
	{"cookie:", token.Cookie},
	{"set-cookie:", token.SetCookie},
	{"accept:", token.Accept},
	{"accept-language:", token.AcceptLanguage},
	{"accept-encoding:", token.AcceptEncoding},
	{"content-length:", token.ContentLength},
	{"content-type:", token.ContentType},
	{"transfer-encoding:", token.TransferEncoding},
	{"user-agent:", token.UserAgent},
	{"referer:", token.Referer},
	{"authorization:", token.Authorization},
	{"range:", token.Range},
	{"if-modified-since:", token.IfModifiedSince},
	{"if-none-match:", token.IfNoneMatch},
	{"cache-control:", token.CacheControl},
	{"pragma:", token.Pragma},
	{"date:", token.Date},
	{"x-forwarded-for:", token.XForwardedFor},
}

var defaultTable = Build(defaultEntries)

// Default returns the package-wide compiled table for the standard
// header/method set, built once at package init and shared: callers
// must not mutate anything reachable from it (Table exposes no
// mutators).
func Default() *Table {
	return defaultTable
}
