package apis

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/thiefmaster/eventsource"
)

type HTTPCredentials struct {
	URL      string `yaml:"url" toml:"url"`
	Username string `yaml:"username" toml:"username"`
	Password string `yaml:"password" toml:"password"`
}

func newRequest(credentials HTTPCredentials) (*http.Request, error) {
	req, err := http.NewRequest("GET", credentials.URL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	if credentials.Username != "" && credentials.Password != "" {
		req.SetBasicAuth(credentials.Username, credentials.Password)
	}
	return req, nil
}

// parseFeedEvent accepts either a JSON Request or plain text.
func parseFeedEvent(data string) (Request, bool) {
	data = strings.TrimSpace(data)
	if data == "" {
		return Request{}, false
	}
	if strings.HasPrefix(data, "{") {
		var req Request
		if err := json.Unmarshal([]byte(data), &req); err != nil || req.empty() {
			return Request{}, false
		}
		return req, true
	}
	return Request{Text: data}, true
}

func subscribeFeed(eventChan chan<- Request, credentials HTTPCredentials, logger zerolog.Logger) {
	req, err := newRequest(credentials)
	if err != nil {
		logger.Error().Err(err).Msg("invalid feed url, giving up")
		return
	}

	stream, err := eventsource.SubscribeWithRequest("", req)
	if err != nil {
		logger.Warn().Err(err).Msg("feed subscribe failed")
		time.Sleep(1 * time.Second)
		defer subscribeFeed(eventChan, credentials, logger)
		return
	}

	stream.InitialRetryDelay = 500 * time.Millisecond
	stream.MaxRetryDelay = 5 * time.Second
	stream.Logger = log.New(logger, "", 0)
	for {
		select {
		case event := <-stream.Events:
			if msg, ok := parseFeedEvent(event.Data()); ok {
				eventChan <- msg
			} else {
				logger.Debug().Str("data", event.Data()).Msg("ignoring feed event")
			}
		case err := <-stream.Errors:
			logger.Warn().Err(err).Msg("feed stream error")
		}
	}
}

// SubscribeFeed follows a server-sent events stream. Each event's data is
// either a JSON Request or plain text to show.
func SubscribeFeed(credentials HTTPCredentials, logger zerolog.Logger) <-chan Request {
	eventChan := make(chan Request)
	go subscribeFeed(eventChan, credentials, logger)
	return eventChan
}
