// Package router is the route table behind the protocol listener.
//
// Routes map a URL path to an Action producing the response payload as a
// string. Static routes match a path exactly; dynamic routes use chi
// patterns and may capture parameters:
//
//	rt := router.New()
//	rt.Static("/client/game/keepalive", keepalive)
//	rt.Dynamic("/client/trading/api/getTraderAssort/{traderID}", assort)
//
// Routes match on the path only and accept every method. An Action returning
// "" means no output; the listener answers with the 404 envelope.
package router
