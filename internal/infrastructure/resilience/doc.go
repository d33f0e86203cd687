/*
Package resilience provides the circuit breaker that sits in front of every
stub host.

A stub that stops answering costs a full transport timeout per command. The
breaker counts consecutive failures per host and, once tripped, rejects calls
immediately until a cooldown passes and a single trial call succeeds.

	Closed --[failures]-> Open --[timeout]-> Half-Open --[success]-> Closed
	                                             |
	                                         [failure]
	                                             v
	                                           Open

Usage:

	group := resilience.NewGroup(resilience.Settings{
		Timeout: 30 * time.Second,
		ReadyToTrip: func(c resilience.Counts) bool {
			return c.ConsecutiveFailures >= 5
		},
	})
	err := group.Get(host).Do(func() error {
		return send()
	})
*/
package resilience
