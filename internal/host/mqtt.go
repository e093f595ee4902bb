package host

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	MQTT "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/tejusbharadwaj/energosync/internal/config"
	"github.com/tejusbharadwaj/energosync/internal/models"
)

var (
	ErrBrokerConnect  = errors.New("mqtt broker connection failed")
	ErrPublishTimeout = errors.New("mqtt publish timed out")
)

const (
	payloadOnline  = "online"
	payloadOffline = "offline"
	publishTimeout = 10 * time.Second
)

// MQTTPublisher announces entities with MQTT discovery. Discovery, state and
// availability messages are retained so the host picks them up after a restart.
type MQTTPublisher struct {
	client          MQTT.Client
	qos             byte
	discoveryPrefix string
	statePrefix     string
	logger          *logrus.Logger
}

type discoveryPayload struct {
	Name                string          `json:"name"`
	UniqueID            string          `json:"unique_id"`
	ObjectID            string          `json:"object_id"`
	StateTopic          string          `json:"state_topic"`
	JSONAttributesTopic string          `json:"json_attributes_topic"`
	AvailabilityTopic   string          `json:"availability_topic"`
	PayloadOn           string          `json:"payload_on,omitempty"`
	PayloadOff          string          `json:"payload_off,omitempty"`
	Device              discoveryDevice `json:"device"`
}

type discoveryDevice struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer"`
	Model        string   `json:"model,omitempty"`
}

// NewMQTTPublisher connects to the configured broker.
func NewMQTTPublisher(cfg config.MQTTConfig, logger *logrus.Logger) (*MQTTPublisher, error) {
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "energosync-" + uuid.NewString()
	}

	opts := MQTT.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(clientID).
		SetUsername(cfg.Username).
		SetPassword(cfg.Password).
		SetAutoReconnect(true).
		SetConnectionLostHandler(func(_ MQTT.Client, err error) {
			logger.WithFields(logrus.Fields{"error": err}).Warn("Lost connection to MQTT broker")
		})

	client := MQTT.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("%w: %v", ErrBrokerConnect, token.Error())
	}
	logger.WithField("broker", cfg.Broker).Info("Connected to MQTT broker")

	return newMQTTPublisher(client, cfg, logger), nil
}

func newMQTTPublisher(client MQTT.Client, cfg config.MQTTConfig, logger *logrus.Logger) *MQTTPublisher {
	return &MQTTPublisher{
		client:          client,
		qos:             byte(cfg.QoS),
		discoveryPrefix: cfg.DiscoveryPrefix,
		statePrefix:     cfg.StatePrefix,
		logger:          logger,
	}
}

func (p *MQTTPublisher) configTopic(d Discovery) string {
	return fmt.Sprintf("%s/%s/%s/config", p.discoveryPrefix, d.Platform, d.UniqueID)
}

func (p *MQTTPublisher) entityTopic(d Discovery, suffix string) string {
	return fmt.Sprintf("%s/%s/%s", p.statePrefix, d.UniqueID, suffix)
}

func (p *MQTTPublisher) PublishDiscovery(_ context.Context, d Discovery) error {
	payload := discoveryPayload{
		Name:                d.Name,
		UniqueID:            d.UniqueID,
		ObjectID:            objectID(d.EntityID),
		StateTopic:          p.entityTopic(d, "state"),
		JSONAttributesTopic: p.entityTopic(d, "attributes"),
		AvailabilityTopic:   p.entityTopic(d, "availability"),
		Device: discoveryDevice{
			Name:         d.Device.Name,
			Manufacturer: d.Device.Manufacturer,
			Model:        d.Device.Model,
		},
	}
	if d.Platform == "binary_sensor" {
		payload.PayloadOn, payload.PayloadOff = "on", "off"
	}
	for _, identifier := range d.Device.Identifiers {
		payload.Device.Identifiers = append(payload.Device.Identifiers, identifier[0]+"_"+identifier[1])
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return p.publish(p.configTopic(d), data)
}

func (p *MQTTPublisher) PublishState(_ context.Context, d Discovery, state models.EntityState) error {
	availability := payloadOnline
	if !state.Available {
		availability = payloadOffline
	}
	attributes, err := json.Marshal(state.Attributes)
	if err != nil {
		return err
	}

	if err := p.publish(p.entityTopic(d, "availability"), []byte(availability)); err != nil {
		return err
	}
	if err := p.publish(p.entityTopic(d, "attributes"), attributes); err != nil {
		return err
	}
	return p.publish(p.entityTopic(d, "state"), []byte(state.State))
}

// PublishRemoval clears the retained discovery config, which removes the entity from the host.
func (p *MQTTPublisher) PublishRemoval(_ context.Context, d Discovery) error {
	if err := p.publish(p.configTopic(d), []byte{}); err != nil {
		return err
	}
	return p.publish(p.entityTopic(d, "availability"), []byte(payloadOffline))
}

func (p *MQTTPublisher) publish(topic string, payload []byte) error {
	p.logger.WithField("topic", topic).Trace("Publishing MQTT message")

	token := p.client.Publish(topic, p.qos, true, payload)
	if !token.WaitTimeout(publishTimeout) {
		messagesPublished.WithLabelValues("mqtt", "failure").Inc()
		return fmt.Errorf("%w: %s", ErrPublishTimeout, topic)
	}
	if err := token.Error(); err != nil {
		messagesPublished.WithLabelValues("mqtt", "failure").Inc()
		return fmt.Errorf("failed to publish %s: %w", topic, err)
	}
	messagesPublished.WithLabelValues("mqtt", "success").Inc()
	return nil
}

func (p *MQTTPublisher) Close() error {
	p.client.Disconnect(250)
	return nil
}

func objectID(entityID string) string {
	if _, object, found := strings.Cut(entityID, "."); found {
		return object
	}
	return entityID
}

var _ Publisher = (*MQTTPublisher)(nil)
