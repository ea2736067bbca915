package main

//go-build: CGO_ENABLED=0

import (
	"flag"

	fx "github.com/robotalks/rtos.go/pkg/framework"
	"github.com/robotalks/rtos.go/pkg/echo"
)

var server = echo.Server{
	TCPAddr: ":5005",
	WSPath:  "/echo",
}

func init() {
	flag.StringVar(&server.TCPAddr, "tcp", server.TCPAddr, "TCP listen address, empty to disable.")
	flag.StringVar(&server.WSAddr, "ws", server.WSAddr, "WebSocket listen address, empty to disable.")
	flag.StringVar(&server.WSPath, "ws-path", server.WSPath, "WebSocket endpoint path.")
}

func main() {
	flag.Parse()
	fx.NewScheduler().Add(&server).RunOrFail()
}
