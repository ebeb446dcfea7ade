package link

import (
	"context"
	"crypto/tls"
	"fmt"
	"os"
	"time"

	jwt "github.com/dgrijalva/jwt-go"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"

	"github.com/tiiuae/flightplanengine/internal/config"
	"github.com/tiiuae/flightplanengine/internal/log"
)

// Username is ignored by the managed broker but must be present.
const Username = "unused"

// Client is the part of mqtt.Client the engine uses.
type Client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
}

// Topic returns the device scoped MQTT topic for suffix.
func Topic(deviceID, suffix string) string {
	return fmt.Sprintf("/devices/%s/%s", deviceID, suffix)
}

// Password signs the JWT the broker accepts as MQTT password.
func Password(c config.MQTTConfig, now time.Time) (string, error) {
	keyData, err := os.ReadFile(c.PrivateKeyPath)
	if err != nil {
		return "", errors.WithMessage(err, "read private key")
	}

	var key interface{}
	switch c.Algorithm {
	case "RS256":
		key, err = jwt.ParseRSAPrivateKeyFromPEM(keyData)
	case "ES256":
		key, err = jwt.ParseECPrivateKeyFromPEM(keyData)
	default:
		return "", errors.Errorf("unknown algorithm: %s", c.Algorithm)
	}
	if err != nil {
		return "", errors.WithMessage(err, "parse private key")
	}

	token := jwt.NewWithClaims(jwt.GetSigningMethod(c.Algorithm), &jwt.StandardClaims{
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(c.TokenLifetime).Unix(),
		Audience:  c.ProjectID,
	})
	pass, err := token.SignedString(key)
	return pass, errors.WithMessage(err, "sign token")
}

// Dial connects to the broker, retrying until ctx is done.
func Dial(ctx context.Context, c config.Config, lg *log.Logger) (mqtt.Client, error) {
	lg = lg.Component("mqtt")
	pass, err := Password(c.MQTT, time.Now())
	if err != nil {
		return nil, err
	}

	clientID := c.ClientID()
	lg.Infof("MQTT: broker %s, client %s", c.MQTT.Broker, clientID)

	opts := mqtt.NewClientOptions().
		AddBroker(c.MQTT.Broker).
		SetClientID(clientID).
		SetUsername(Username).
		SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12}).
		SetPassword(pass).
		SetProtocolVersion(4). // Use MQTT 3.1.1
		SetAutoReconnect(true).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			lg.Warnf("MQTT: connection lost: %v", err)
		})

	client := mqtt.NewClient(opts)
	for {
		lg.Infof("MQTT: connecting...")
		tok := client.Connect()
		if tok.WaitTimeout(c.MQTT.ConnectTimeout) {
			if err := tok.Error(); err != nil {
				return nil, errors.WithMessage(err, "mqtt connect")
			}
			lg.Infof("MQTT: connected")
			return client, nil
		}

		lg.Warnf("MQTT: connection timeout")
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
	}
}

func wait(tok mqtt.Token, timeout time.Duration) error {
	if !tok.WaitTimeout(timeout) {
		return errors.New("mqtt operation timed out")
	}
	return tok.Error()
}
