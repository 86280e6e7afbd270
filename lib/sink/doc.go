// Package sink provides a listener that accepts plain or TLS connections and
// records every byte received per connection. It is the receiving side for
// fanout blast runs and the harness the pool tests run against.
//
// Usage:
//
//	s, err := sink.Listen(sink.Config{Endpoint: "127.0.0.1:0"})
//	if err != nil {
//		return err
//	}
//	s.Start()
//	defer s.Close()
//
//	// ... connect and send to s.Port()
//
//	s.WaitReceived(expected, time.Second)
//	for _, rec := range s.Recordings() {
//		fmt.Println(rec.ID, string(rec.Data))
//	}
package sink
