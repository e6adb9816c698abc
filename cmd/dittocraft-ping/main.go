// Command dittocraft-ping queries a server's status the way the server list
// does: it sends a Server List Ping and prints the reply.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/marmos91/dittocraft/internal/protocol/packet"
)

// Status is the decoded reply to a Server List Ping.
type Status struct {
	MOTD       string
	Online     int
	MaxPlayers int
	Latency    time.Duration
}

func main() {
	timeout := flag.Duration("timeout", 5*time.Second, "Dial and read timeout")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] host[:port]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	addr := flag.Arg(0)
	if _, _, err := net.SplitHostPort(addr); err != nil {
		addr = net.JoinHostPort(addr, "25565")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	status, err := ping(ctx, addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("%s\n", status.MOTD)
	fmt.Printf("Players: %d/%d\n", status.Online, status.MaxPlayers)
	fmt.Printf("Latency: %v\n", status.Latency.Round(time.Millisecond))
}

// ping sends a Server List Ping to addr and decodes the Disconnect that
// carries the status.
func ping(ctx context.Context, addr string) (Status, error) {
	var d net.Dialer
	start := time.Now()

	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return Status{}, fmt.Errorf("dial %s: %w", addr, err)
	}
	defer func() { _ = conn.Close() }()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	req, err := packet.Encode(&packet.ServerListPing{})
	if err != nil {
		return Status{}, err
	}
	if _, err := conn.Write(req); err != nil {
		return Status{}, fmt.Errorf("send ping: %w", err)
	}

	reply, err := packet.NewClientReader(conn).Next(packet.AllowAll)
	if err != nil {
		return Status{}, fmt.Errorf("read status: %w", err)
	}

	kick, ok := reply.(*packet.Disconnect)
	if !ok {
		return Status{}, fmt.Errorf("unexpected reply %s", reply.ID())
	}

	status, err := parseStatus(kick.Reason)
	if err != nil {
		return Status{}, err
	}
	status.Latency = time.Since(start)
	return status, nil
}

// parseStatus splits "motd§online§max". The MOTD itself may contain the
// separator, so the counts are taken from the end.
func parseStatus(reason string) (Status, error) {
	parts := strings.Split(reason, "§")
	if len(parts) < 3 {
		return Status{}, errors.New("malformed status: expected motd§online§max")
	}

	n := len(parts)
	online, err := strconv.Atoi(parts[n-2])
	if err != nil {
		return Status{}, fmt.Errorf("malformed online count %q", parts[n-2])
	}
	maxPlayers, err := strconv.Atoi(parts[n-1])
	if err != nil {
		return Status{}, fmt.Errorf("malformed max players %q", parts[n-1])
	}

	return Status{
		MOTD:       strings.Join(parts[:n-2], "§"),
		Online:     online,
		MaxPlayers: maxPlayers,
	}, nil
}
