// Command keyloop-client is a line-oriented REPL for talking to
// keyloop-server over its length-prefixed binary protocol. It tokenizes
// each input line on whitespace, sends it as one request frame, and
// pretty-prints the tagged reply.
//
// Usage:
//
//	keyloop-client -addr localhost:1234
package main

import (
	"bufio"
	"encoding/binary"
	"flag"
	"fmt"
	"math"
	"net"
	"os"
	"strings"

	"keyloop/internal/wire"
)

func main() {
	addr := flag.String("addr", "localhost:1234", "server address")
	flag.Parse()

	conn, err := net.Dial("tcp", *addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close()

	fmt.Printf("connected to %s\n", *addr)
	scanner := bufio.NewScanner(os.Stdin)
	var history []string
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "quit" || line == "exit" {
			break
		}
		if line == "hist" {
			for i, h := range history {
				fmt.Printf("%d  %s\n", i+1, h)
			}
			continue
		}
		history = append(history, line)

		fields := strings.Fields(line)
		args := make([][]byte, len(fields))
		for i, f := range fields {
			args[i] = []byte(f)
		}

		if err := sendRequest(conn, args); err != nil {
			fmt.Fprintf(os.Stderr, "send: %v\n", err)
			continue
		}
		if err := printReply(conn); err != nil {
			fmt.Fprintf(os.Stderr, "reply: %v\n", err)
			continue
		}
	}
}

func sendRequest(conn net.Conn, args [][]byte) error {
	_, err := conn.Write(wire.EncodeRequest(args))
	return err
}

// printReply reads and decodes exactly one response frame from conn.
func printReply(conn net.Conn) error {
	var lenBuf [4]byte
	if _, err := readFull(conn, lenBuf[:]); err != nil {
		return err
	}
	length := binary.LittleEndian.Uint32(lenBuf[:])
	body := make([]byte, length)
	if _, err := readFull(conn, body); err != nil {
		return err
	}
	printValue(body)
	fmt.Println()
	return nil
}

// printValue decodes and prints one tagged value from the front of buf,
// recursing into ARR payloads, and returns whatever of buf it didn't
// consume.
func printValue(buf []byte) []byte {
	tag, rest := buf[0], buf[1:]
	switch tag {
	case wire.TagNil:
		fmt.Print("(nil)")
		return rest
	case wire.TagStr:
		n := binary.LittleEndian.Uint32(rest)
		rest = rest[4:]
		fmt.Printf("%q", string(rest[:n]))
		return rest[n:]
	case wire.TagInt:
		v := int64(binary.LittleEndian.Uint64(rest))
		fmt.Printf("%d", v)
		return rest[8:]
	case wire.TagDbl:
		v := math.Float64frombits(binary.LittleEndian.Uint64(rest))
		fmt.Printf("%v", v)
		return rest[8:]
	case wire.TagErr:
		code := binary.LittleEndian.Uint32(rest)
		rest = rest[4:]
		n := binary.LittleEndian.Uint32(rest)
		rest = rest[4:]
		fmt.Printf("(error %d) %s", code, string(rest[:n]))
		return rest[n:]
	case wire.TagArr:
		n := binary.LittleEndian.Uint32(rest)
		rest = rest[4:]
		fmt.Print("[")
		for i := uint32(0); i < n; i++ {
			if i > 0 {
				fmt.Print(", ")
			}
			rest = printValue(rest)
		}
		fmt.Print("]")
		return rest
	default:
		fmt.Printf("(unknown tag %d)", tag)
		return nil
	}
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}
