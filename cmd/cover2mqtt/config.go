package main

import (
	"context"
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/jkaflik/cover2mqtt/internal/cover"
	"github.com/jkaflik/cover2mqtt/internal/cover/driver/relay"
	"github.com/jkaflik/cover2mqtt/internal/history"
	"github.com/jkaflik/cover2mqtt/internal/mqtt"
	"github.com/racerxdl/go-mcp23017"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"
)

const (
	coverKindRemote = "remote"
	coverKindRelays = "relays"
)

type cfgWiredRelaySetPin struct {
	Kind string `yaml:"kind"`

	Pin uint8 `yaml:"pin"`

	Mcp23017 int `yaml:"mcp23017"`
}

type cfgRelay struct {
	Kind string `yaml:"kind"`

	Pin          cfgWiredRelaySetPin `yaml:"pin"`
	NormalClosed bool                `yaml:"normal_closed"`
}

type cfgCoverMQTTBridge struct {
	Metadata map[string]interface{} `yaml:"metadata"`
}

type cfgCoverDriverRelays struct {
	Up   cfgRelay `yaml:"up"`
	Down cfgRelay `yaml:"down"`

	TimeToClose time.Duration `yaml:"time_to_close" default:"1m"`
}

type cfgCoverDriver struct {
	Relays cfgCoverDriverRelays `yaml:"relays"`
}

type cfgCover struct {
	Name     string `yaml:"name"`
	Kind     string `yaml:"kind"`
	DeviceID string `yaml:"device_id"`
	Model    string `yaml:"model"`

	MQTTBridge cfgCoverMQTTBridge `yaml:"mqtt_bridge"`

	Driver cfgCoverDriver `yaml:"driver"`
}

type cfgDrivers struct {
	Relay struct {
		Pool     int `yaml:"pool" default:"0"`
		Mcp23017 map[int]struct {
			Bus          uint8 `yaml:"bus" default:"1"`
			DeviceNumber uint8 `yaml:"device_number" default:"0"`
		} `yaml:"mcp23017"`
	} `yaml:"relay"`
}

type cfgMQTT struct {
	ClientID    string `yaml:"client_id" default:"cover2mqtt" env:"CLIENT_ID"`
	Broker      string `yaml:"broker" default:"127.0.0.1:1883" env:"BROKER"`
	Username    string `yaml:"username" env:"USERNAME"`
	Password    string `yaml:"password" env:"PASSWORD"`
	TopicPrefix string `yaml:"topic_prefix" default:"cover2mqtt" env:"TOPIC_PREFIX"`
}

type cfgHASS struct {
	Enabled     bool   `yaml:"enabled" default:"true" env:"ENABLED"`
	TopicPrefix string `yaml:"topic_prefix" default:"homeassistant" env:"TOPIC_PREFIX"`
}

type cfgGateway struct {
	TopicPrefix string `yaml:"topic_prefix" default:"shc" env:"TOPIC_PREFIX"`
}

type cfgInfluxDB struct {
	Enabled       bool          `yaml:"enabled" default:"false" env:"ENABLED"`
	URL           string        `yaml:"url" default:"http://localhost:8086" env:"URL"`
	Token         string        `yaml:"token" env:"TOKEN"`
	Org           string        `yaml:"org" env:"ORG"`
	Bucket        string        `yaml:"bucket" default:"covers" env:"BUCKET"`
	BatchSize     uint          `yaml:"batch_size" default:"100" env:"BATCH_SIZE"`
	FlushInterval time.Duration `yaml:"flush_interval" default:"10s" env:"FLUSH_INTERVAL"`
}

var Cfg struct {
	LogLevel string `yaml:"log_level" default:"info" env:"LOG_LEVEL"`

	MQTT     cfgMQTT     `yaml:"mqtt" env:"MQTT"`
	HASS     cfgHASS     `yaml:"hass" env:"HASS"`
	Gateway  cfgGateway  `yaml:"gateway" env:"GATEWAY"`
	InfluxDB cfgInfluxDB `yaml:"influxdb" env:"INFLUXDB"`

	Covers []cfgCover `yaml:"covers"`

	Drivers cfgDrivers `yaml:"drivers"`
}

var configLoader = aconfig.LoaderFor(&Cfg, aconfig.Config{
	EnvPrefix: "C2M",
	SkipFlags: true,
	SkipFiles: true,
})

var relaysPool relay.Pool

func loadConfigFromYamlFile(filename string) {
	f, err := os.Open(filename)
	if err != nil {
		logrus.Error(err)
		return
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(&Cfg); err != nil {
		logrus.Fatal(err)
		return
	}

	relaysPool = relay.NewPool(Cfg.Drivers.Relay.Pool)
}

func pahoOptsFromConfig() *paho.ClientOptions {
	return paho.NewClientOptions().
		SetClientID(Cfg.MQTT.ClientID).
		AddBroker(Cfg.MQTT.Broker).
		SetUsername(Cfg.MQTT.Username).
		SetPassword(Cfg.MQTT.Password).
		SetConnectTimeout(time.Second).
		SetPingTimeout(time.Second).
		SetWriteTimeout(time.Second).
		SetAutoReconnect(true)
}

func recorderFromConfig() *history.Recorder {
	r, err := history.Connect(history.Config{
		Enabled:       Cfg.InfluxDB.Enabled,
		URL:           Cfg.InfluxDB.URL,
		Token:         Cfg.InfluxDB.Token,
		Org:           Cfg.InfluxDB.Org,
		Bucket:        Cfg.InfluxDB.Bucket,
		BatchSize:     Cfg.InfluxDB.BatchSize,
		FlushInterval: Cfg.InfluxDB.FlushInterval,
	})
	if err == history.ErrDisabled {
		logrus.Debug("influxdb: history disabled")
		return nil
	}
	if err != nil {
		logrus.Fatal(err)
	}

	return r
}

// cover2mqttFromConfig registers every configured cover and bridges it.
func cover2mqttFromConfig(ctx context.Context, client paho.Client, manager *cover.Manager, feed *mqtt.Feed, recorder *history.Recorder) (bridges []*mqtt.Bridge) {
	for _, cfg := range Cfg.Covers {
		d, source, sink := coverFromConfig(ctx, client, feed, cfg)

		e, err := manager.Add(d, source, sink)
		if err != nil {
			logrus.Fatal(err)
			continue
		}

		bridge := mqtt.NewBridge(client, Cfg.MQTT.TopicPrefix, e)
		if err := bridge.SetMetadata(cfg.MQTTBridge.Metadata); err != nil {
			logrus.Fatal(err)
			continue
		}
		if stateless, ok := sink.(cover.Stateless); ok {
			if err := bridge.RestorePosition(stateless); err != nil {
				logrus.Error(err)
			}
		}
		if recorder != nil {
			e.OnUpdate(recorder.Handler(e))
		}

		bridges = append(bridges, bridge)
	}

	return bridges
}

func coverFromConfig(ctx context.Context, client paho.Client, feed *mqtt.Feed, cfg cfgCover) (cover.Descriptor, cover.Feed, cover.Sink) {
	d := cover.Descriptor{ID: cfg.DeviceID, Name: cfg.Name, Model: cover.ParseModel(cfg.Model)}

	switch cfg.Kind {
	case coverKindRemote:
		if d.Model == cover.ModelUnknown {
			logrus.Fatalf("%s: %q is not supported cover model", cfg.Name, cfg.Model)
		}
		return d, feed, mqtt.NewRemoteDevice(client, Cfg.Gateway.TopicPrefix, d.ID)

	case coverKindRelays:
		if d.ID == "" {
			d.ID = cfg.Name
		}
		d.Model = cover.RollerBBL

		up, down := relay.NewRelayPair(
			relayFromConfig(ctx, cfg.Name+" up", cfg.Driver.Relays.Up),
			relayFromConfig(ctx, cfg.Name+" down", cfg.Driver.Relays.Down),
		)
		device := relay.NewDevice(d.ID, up, down, cfg.Driver.Relays.TimeToClose)
		return d, device, device
	}

	logrus.Fatalf("%s is not supported cover kind", cfg.Kind)
	return d, nil, nil
}

func relayFromConfig(ctx context.Context, name string, cfg cfgRelay) relay.Relay {
	if cfg.Kind == "wired" {
		return relay.NewPoolProxy(&relay.Wired{
			Pin:          wiredRelaySetPinFromConfig(ctx, cfg.Pin),
			NormalClosed: cfg.NormalClosed,
		}, relaysPool)
	}

	if cfg.Kind == "dumb" {
		return relay.NewPoolProxy(&relay.Dumb{Name: name}, relaysPool)
	}

	logrus.Fatalf("%s is not supported relay kind", cfg.Kind)
	return nil
}

func wiredRelaySetPinFromConfig(ctx context.Context, cfg cfgWiredRelaySetPin) relay.SetPin {
	if cfg.Kind == "mcp23017" {
		device := mcp23017DeviceFromConfigByID(ctx, cfg.Mcp23017)

		p, err := relay.NewMcp23017Pin(device, cfg.Pin)
		if err != nil {
			logrus.Fatal(err)
		}
		return p
	}

	logrus.Fatalf("%s is not supported wired relay set pin kind", cfg.Kind)
	return nil
}

var mcpDevices = map[int]*mcp23017.Device{}

func mcp23017DeviceFromConfigByID(ctx context.Context, id int) *mcp23017.Device {
	if Cfg.Drivers.Relay.Mcp23017 == nil {
		logrus.Fatal("drivers.relay.mcp23017 not defined")
	}

	cfg, found := Cfg.Drivers.Relay.Mcp23017[id]
	if !found {
		logrus.Fatalf("%d is not valid defined drivers.relay.mcp23017", id)
		return nil
	}

	dev := mcpDevices[id]
	if dev == nil {
		var err error
		dev, err = mcp23017.Open(cfg.Bus, cfg.DeviceNumber)
		if err != nil {
			logrus.Fatal(err)
		}
		go func() {
			<-ctx.Done()
			if err := dev.Close(); err != nil {
				logrus.Errorf("mcp23017: close failed %s", err)
				return
			}

			logrus.Infof("mcp23017: close")
		}()
		if err := dev.Reset(); err != nil {
			logrus.Fatal(err)
		}

		mcpDevices[id] = dev
	}

	return dev
}
