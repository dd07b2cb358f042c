package sms

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// MQTTSource bridges texts relayed by an SMS gateway over MQTT. Each payload
// is a JSON object {"id", "sender", "body"}; a missing id gets a generated
// one so suppression bookkeeping still works.
type MQTTSource struct {
	client mqtt.Client
	topic  string
	ch     chan Message
	log    zerolog.Logger
}

type wireMessage struct {
	ID     string `json:"id"`
	Sender string `json:"sender"`
	Body   string `json:"body"`
}

// NewMQTTSource connects to the broker and subscribes to topic. Call Close
// when done.
func NewMQTTSource(brokerURL, username, password, clientID, topic string, log zerolog.Logger) (*MQTTSource, error) {
	s := &MQTTSource{
		topic: topic,
		ch:    make(chan Message, 8),
		log:   log.With().Str("component", "sms-bridge").Logger(),
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(brokerURL)
	opts.SetClientID(clientID)
	if username != "" {
		opts.SetUsername(username)
		opts.SetPassword(password)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(10 * time.Second)
	opts.OnConnect = func(c mqtt.Client) {
		if token := c.Subscribe(topic, 1, s.handle); token.Wait() && token.Error() != nil {
			s.log.Error().Err(token.Error()).Str("topic", topic).Msg("subscribe failed")
		}
	}

	s.client = mqtt.NewClient(opts)
	if token := s.client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("sms: connect %s: %w", brokerURL, token.Error())
	}
	return s, nil
}

func (s *MQTTSource) handle(_ mqtt.Client, msg mqtt.Message) {
	var wm wireMessage
	if err := json.Unmarshal(msg.Payload(), &wm); err != nil {
		s.log.Warn().Err(err).Msg("undecodable sms payload")
		return
	}
	if wm.ID == "" {
		wm.ID = uuid.New().String()
	}
	select {
	case s.ch <- Message{ID: wm.ID, Sender: wm.Sender, Body: wm.Body}:
	default:
		s.log.Warn().Msg("sms delivery buffer full, message dropped")
	}
}

func (s *MQTTSource) Messages() <-chan Message { return s.ch }

// Suppress acknowledges the consumed command back to the gateway so the text
// never reaches the device inbox.
func (s *MQTTSource) Suppress(_ context.Context, id string) error {
	payload, _ := json.Marshal(map[string]string{"id": id})
	token := s.client.Publish(s.topic+"/suppress", 1, false, payload)
	token.Wait()
	return token.Error()
}

// Close disconnects from the broker and closes the delivery channel.
func (s *MQTTSource) Close() {
	s.client.Disconnect(250)
	close(s.ch)
}
