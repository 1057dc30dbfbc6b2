package main

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Event is the outcome of one script command.
type Event struct {
	Line    int    `json:"line"`
	Command string `json:"command"`
	Channel int    `json:"channel,omitempty"`
	Result  string `json:"result"`
	Half    string `json:"half,omitempty"`
	Data    string `json:"data,omitempty"`
}

func (e Event) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d: %s", e.Line, e.Command)
	if e.Channel != 0 {
		fmt.Fprintf(&b, " ch%d", e.Channel)
	}
	fmt.Fprintf(&b, ": %s", e.Result)
	if e.Half != "" {
		fmt.Fprintf(&b, " [%s]", e.Half)
	}
	if e.Data != "" {
		fmt.Fprintf(&b, " %s", e.Data)
	}
	return b.String()
}

// Reporter receives the outcome of every command that produces one.
type Reporter interface {
	Report(e Event) error
}

type logReporter struct {
	l *log.Logger
}

func (r logReporter) Report(e Event) error {
	r.l.Println(e)
	return nil
}

// mqttReporter publishes events as JSON to <topic>/ch<n>, or <topic>/sim for
// commands without a channel.
type mqttReporter struct {
	client  mqtt.Client
	topic   string
	timeout time.Duration
}

func newMQTTReporter(broker, clientID, topic string) (*mqttReporter, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(clientID)
	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connect to %s: %w", broker, token.Error())
	}
	return &mqttReporter{client: client, topic: topic, timeout: 5 * time.Second}, nil
}

func (r *mqttReporter) Report(e Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return err
	}
	topic := r.topic + "/sim"
	if e.Channel != 0 {
		topic = fmt.Sprintf("%s/ch%d", r.topic, e.Channel)
	}
	token := r.client.Publish(topic, 0, false, payload)
	if !token.WaitTimeout(r.timeout) {
		return fmt.Errorf("publish to %s: timed out", topic)
	}
	return token.Error()
}

func (r *mqttReporter) Close() {
	r.client.Disconnect(250)
}

type multiReporter []Reporter

func (m multiReporter) Report(e Event) error {
	for _, r := range m {
		if err := r.Report(e); err != nil {
			return err
		}
	}
	return nil
}
