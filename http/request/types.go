package request

import (
	"net/http"
	"time"
)

type (
	Request struct {
		Url      string
		Method   string
		Headers  []Headers
		Payload  interface{}
		Username string
		Password string
		Timeout  time.Duration
		// Client overrides the default client, mostly for tests.
		Client *http.Client
	}

	Headers struct {
		Key   string
		Value string
	}
)
