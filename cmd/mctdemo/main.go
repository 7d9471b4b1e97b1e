// Command mctdemo registers a demonstration application and context,
// emits a handful of log messages at one level (info, or verbose with
// -v), and reports the client's metrics snapshot before exiting. It is a
// demonstration client program, not a daemon — a real daemon must
// already be listening at the configured transport path; otherwise
// NewClient fails and the program exits with an error.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/minminlittleshrimp/mct-go"
)

func main() {
	var (
		apid    = flag.String("apid", "DEMO", "application id (4 chars)")
		ctid    = flag.String("ctid", "MAIN", "context id (4 chars)")
		count   = flag.Int("count", 5, "number of log messages to emit")
		ipcPath = flag.String("ipc-path", "/tmp", "directory holding the daemon's Unix socket")
		verbose = flag.Bool("v", false, "emit at verbose level instead of info")
	)
	flag.Parse()

	cfg := mct.DefaultConfig()
	cfg.Transport.IPCPath = *ipcPath

	client, err := mct.NewClient(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mctdemo: new client: %v\n", err)
		os.Exit(1)
	}
	defer client.Close()

	if err := client.RegisterApp(*apid, "mctdemo demonstration application"); err != nil {
		fmt.Fprintf(os.Stderr, "mctdemo: register app: %v\n", err)
		os.Exit(1)
	}

	level := mct.LogLevelInfo
	if *verbose {
		level = mct.LogLevelVerbose
	}

	ctx, err := client.RegisterContext(*ctid, "mctdemo main context", level, mct.TraceStatusOff)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mctdemo: register context: %v\n", err)
		os.Exit(1)
	}

	ctx.OnLogLevelChanged(func(level mct.LogLevel, trace mct.TraceStatus) {
		fmt.Fprintf(os.Stderr, "mctdemo: log level changed to %d (trace=%d)\n", level, trace)
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for i := 0; i < *count; i++ {
		select {
		case <-sigCh:
			fmt.Fprintln(os.Stderr, "mctdemo: received shutdown signal")
			report(client)
			return
		default:
		}

		if logErr := ctx.Log(level).
			WriteString("demo tick").
			WriteUint(mct.Width32, uint64(i)).
			WriteFloat(mct.Width64, time.Since(time.Unix(0, 0)).Seconds()).
			Finish(); logErr != nil {
			fmt.Fprintf(os.Stderr, "mctdemo: log %d: %v\n", i, logErr)
		}
		time.Sleep(100 * time.Millisecond)
	}

	report(client)
}

func report(client *mct.Client) {
	snap := client.Snapshot()
	fmt.Printf("sent=%d queued=%d dropped=%d pipe_full=%d pipe_error=%d ring_depth=%d resyncs=%d uptime=%s\n",
		snap.MessagesSent, snap.MessagesQueued, snap.MessagesDropped,
		snap.PipeFullCount, snap.PipeErrorCount, snap.RingDepth, snap.ResyncCount,
		time.Duration(snap.UptimeNs))
}
