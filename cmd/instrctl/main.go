package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/instrctl/comm"
	"github.com/danmuck/instrctl/instr"
	"github.com/danmuck/instrctl/internal/logging"
	"github.com/danmuck/instrctl/internal/observability"
)

func main() {
	uri := flag.String("uri", "", "instrument uri, e.g. tcpip://192.168.0.10:4100")
	cmd := flag.String("cmd", "", "command line to transmit")
	query := flag.Bool("query", false, "read one response line after sending")
	timeout := flag.Duration("timeout", 3*time.Second, "response timeout")
	term := flag.String("term", "\n", "line terminator")
	debug := flag.Bool("debug", false, "log every line on the wire")
	flag.Parse()

	logging.ConfigureRuntime()
	observability.InitLogger("instrctl")
	if *uri == "" || *cmd == "" {
		flag.Usage()
		os.Exit(2)
	}

	opts := []comm.Option{
		comm.WithTimeout(*timeout),
		comm.WithTerminators(*term, *term),
	}
	if *debug {
		opts = append(opts, comm.WithDebug())
	}
	c, err := comm.OpenURI(*uri, opts...)
	if err != nil {
		log.Fatal().Err(err).Str("uri", *uri).Msg("open failed")
	}
	inst := instr.New(c)
	defer inst.Close()

	if *query {
		resp, err := inst.Query(*cmd)
		if err != nil {
			log.Fatal().Err(err).Str("cmd", *cmd).Msg("query failed")
		}
		fmt.Println(resp)
		return
	}
	if err := inst.SendCmd(*cmd); err != nil {
		log.Fatal().Err(err).Str("cmd", *cmd).Msg("send failed")
	}
	log.Info().Str("cmd", *cmd).Msg("sent")
}
