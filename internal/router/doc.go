// Package router decides whether an inbound peripheral message is relayed,
// and to which topic.
//
// Topics follow the peripheral grammar:
//
//	dev/<dev>/uuid/<uuid>/<in|out>/<peripheral>/<index>
//
// A Rule maps one source peripheral to one target peripheral. The default
// rule relays switch input to LED output:
//
//	dev/pcu/uuid/1234-5678/in/sw/3  ->  dev/pcu/uuid/1234-5678/out/led/3
//
// The rule ignores the inbound direction, so an out/sw message is relayed
// as well. Device, uuid and index are carried through unchanged and the
// payload is passed through untouched.
//
// The Router performs no I/O. Publishing the result is the caller's job
// (see package relay), which keeps routing testable without a broker.
//
// Thread Safety: a Router holds only a compiled pattern and a Rule value
// and is safe for concurrent use.
package router
