// Command dmasim runs a script of DMA1 operations against a simulated
// controller and reports the result of each step.
//
// Usage:
//
//	dmasim [-broker tcp://host:1883] [-topic dmasim] [script]
//
// The script is read from standard input when no file is given. Each line
// holds one command; '#' starts a comment.
//
//	priority <ch> <low|medium|high|veryhigh>
//	listen <ch> <half|complete|error>
//	tx <ch> <bytes...>          start a write of the given hex bytes
//	rx <ch> <len>               start a read into a zeroed buffer
//	deliver <ch> <bytes...>     engine writes into the read buffer
//	poll <ch>                   poll a one-shot transfer
//	wait <ch>                   wait for it and print the buffer
//	circ <ch> <len>             start a circular read
//	fill <ch> <first|second> <bytes...>
//	read <ch>                   read the next half
//	maxread <ch> <duration>
//	pause <ch> | resume <ch> | stop <ch>
//	half <ch> | complete <ch> | error <ch>
//	after <polls> <half|complete|error> <ch>
//	expect <result>             fail unless the last result matches
//	stats
package main

import (
	"flag"
	"io"
	"log"
	"os"
)

var (
	flagBroker   = flag.String("broker", "", "MQTT broker URL to publish results to")
	flagTopic    = flag.String("topic", "dmasim", "MQTT topic prefix")
	flagClientID = flag.String("client-id", "dmasim", "MQTT client ID")
)

func main() {
	flag.Parse()
	log.SetFlags(0)
	if err := simulate(); err != nil {
		log.Fatal(err)
	}
}

func simulate() error {
	var in io.Reader = os.Stdin
	if flag.NArg() > 0 {
		f, err := os.Open(flag.Arg(0))
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	rep := multiReporter{logReporter{log.New(os.Stdout, "", 0)}}
	if *flagBroker != "" {
		m, err := newMQTTReporter(*flagBroker, *flagClientID, *flagTopic)
		if err != nil {
			return err
		}
		defer m.Close()
		rep = append(rep, m)
	}
	return run(in, rep)
}
