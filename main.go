package main

import (
	"bufio"
	"encoding/json"
	"log"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"relaychat/config"
	"relaychat/msglog"
	"relaychat/server"
)

func main() {
	cfg := config.Load()

	messageLog, err := msglog.Open(cfg.LogPath)
	if err != nil {
		log.Fatalf("Failed to open message log: %v", err)
	}
	defer messageLog.Close()

	srvConfig := &server.ServerConfig{
		Port:         cfg.Port,
		WriteTimeout: time.Duration(cfg.WriteTimeout) * time.Second,
	}

	srv := server.New(messageLog, srvConfig)

	// Control socket for the viewer: stats, date-range history, shutdown
	go startControlSocket(srv, cfg.ControlSocket)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Printf("Received signal %v, shutting down...", sig)
		srv.Shutdown()
		os.Remove(cfg.ControlSocket)
	}()

	if err := srv.Start(); err != nil {
		log.Fatal(err)
	}
}

func startControlSocket(srv *server.Server, path string) {
	os.Remove(path)

	listener, err := net.Listen("unix", path)
	if err != nil {
		log.Printf("Failed to create control socket: %v", err)
		return
	}
	defer listener.Close()
	defer os.Remove(path)

	log.Printf("Control socket listening on %s", path)

	for {
		conn, err := listener.Accept()
		if err != nil {
			continue
		}

		go handleControlCommand(srv, conn)
	}
}

func handleControlCommand(srv *server.Server, conn net.Conn) {
	defer conn.Close()

	reader := bufio.NewReader(conn)
	line, err := reader.ReadString('\n')
	if err != nil {
		return
	}

	line = strings.TrimSpace(line)
	parts := strings.SplitN(line, "|", 3)

	switch parts[0] {
	case "stats":
		conn.Write([]byte("OK|" + srv.Stats() + "\n"))

	case "hist":
		// Format: hist|yyyy/MM/dd HH:mm|yyyy/MM/dd HH:mm
		if len(parts) < 3 {
			conn.Write([]byte("ERROR|Usage: hist|from|to\n"))
			return
		}
		records := srv.GetMessagesBasedOnDate(parts[1], parts[2])
		body, err := json.Marshal(records)
		if err != nil {
			conn.Write([]byte("ERROR|" + err.Error() + "\n"))
			return
		}
		conn.Write([]byte("OK|"))
		conn.Write(body)
		conn.Write([]byte("\n"))

	case "shutdown":
		conn.Write([]byte("OK|Shutting down\n"))
		conn.Close()

		// Give time for the response to be sent
		time.Sleep(100 * time.Millisecond)

		log.Printf("Shutdown requested via control socket")
		srv.Shutdown()
		os.Exit(0)

	default:
		conn.Write([]byte("ERROR|Unknown command\n"))
	}
}
