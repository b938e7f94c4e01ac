package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/jkaflik/cover2mqtt/internal/cover"
	"github.com/jkaflik/cover2mqtt/internal/mqtt"
	"github.com/sirupsen/logrus"
)

func main() {
	logrus.SetFormatter(&logrus.TextFormatter{
		DisableColors: false,
		FullTimestamp: true,
	})

	configPath := flag.String("config", "config.yaml", "config.yaml file path")
	flag.Parse()

	if err := configLoader.Load(); err != nil {
		logrus.Fatal(err)
	}
	loadConfigFromYamlFile(*configPath)

	level, err := logrus.ParseLevel(Cfg.LogLevel)
	if err != nil {
		logrus.Fatal(err)
	}
	logrus.SetLevel(level)

	ctx, cancel := context.WithCancel(context.Background())

	var (
		mu       sync.Mutex
		bridges  []*mqtt.Bridge
		feed     *mqtt.Feed
		connects int
	)
	cfg := pahoOptsFromConfig()
	cfg.OnConnect = func(m paho.Client) {
		logrus.Info("MQTT broker connected")

		mu.Lock()
		defer mu.Unlock()
		connects++
		// the first connection is subscribed below, once covers are set up
		if connects == 1 || feed == nil {
			return
		}
		if err := feed.Resubscribe(); err != nil {
			logrus.Error(err)
		}
		subscribe(ctx, m, bridges)
	}
	cfg.OnConnectionLost = func(_ paho.Client, err error) {
		logrus.Errorf("MQTT broker connection lost: %s", err.Error())
	}

	m := paho.NewClient(cfg)
	if token := m.Connect(); token.Wait() && token.Error() != nil {
		logrus.Fatal(token.Error())
	}

	recorder := recorderFromConfig()
	manager := cover.NewManager()

	mu.Lock()
	feed = mqtt.NewFeed(m, Cfg.Gateway.TopicPrefix)
	bridges = cover2mqttFromConfig(ctx, m, manager, feed, recorder)
	subscribe(ctx, m, bridges)
	mu.Unlock()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		oscall := <-c
		logrus.Infof("system call: %+v", oscall)
		cancel()
	}()

	<-ctx.Done()

	manager.Close()
	if recorder != nil {
		recorder.Close()
	}

	cleanupTime := time.Second
	logrus.Infof("cleanups for %s...", cleanupTime.String())
	time.Sleep(cleanupTime)

	m.Disconnect(uint(cleanupTime.Milliseconds()))
}

func subscribe(ctx context.Context, m paho.Client, bridges []*mqtt.Bridge) {
	for _, bridge := range bridges {
		if Cfg.HASS.Enabled {
			entity := mqtt.NewHACoverFromMQTTBridge(bridge)
			if err := mqtt.PublishHAAutoDiscovery(m, Cfg.HASS.TopicPrefix, entity); err != nil {
				logrus.Error(err)
			}
		}

		if err := bridge.Subscribe(ctx); err != nil {
			logrus.Error(err)
		}
	}
}
