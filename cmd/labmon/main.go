package main

import (
	"flag"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/robotalks/rtos.go/pkg/status"
)

var (
	mqttURL = "mqtt://localhost:1883/tasklab/"
	press   string
)

func init() {
	if val := os.Getenv("TASKLAB_MQTT_URL"); val != "" {
		mqttURL = val
	}
	flag.StringVar(&mqttURL, "mqtt", mqttURL, "MQTT broker URL.")
	flag.StringVar(&press, "press", press, "Press the button of the device and exit.")
}

func main() {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds)

	bus, err := status.NewBus(mqttURL, "labmon:"+strconv.Itoa(os.Getpid()))
	if err != nil {
		log.Fatalln(err)
	}
	if err := bus.Connect(5 * time.Second); err != nil {
		log.Fatalln(err)
	}
	defer bus.Close()

	if press != "" {
		if err := status.NewPublisher(bus, press).Press(); err != nil {
			log.Fatalln(err)
		}
		return
	}

	if _, err := bus.Subscribe("#", func(topic string, payload []byte) {
		msg, err := status.Decode(topic, payload)
		switch {
		case err != nil:
			log.Printf("%s: bad message: %v", topic, err)
		case msg == nil:
			log.Printf("%s: pressed", topic)
		default:
			log.Printf("%s: %s", topic, msg.String())
		}
	}); err != nil {
		log.Fatalln(err)
	}
	<-(chan struct{})(nil)
}
