package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/pnlite/pnlite/connection"
	"github.com/pnlite/pnlite/connection/transporter/rawsocket"
	"github.com/pnlite/pnlite/logger"
	"github.com/pnlite/pnlite/subscriber"
	"github.com/pnlite/pnlite/subscription"
)

const clientVersion = "$PNSUB_VERSION"

var (
	printVersion bool

	subscribeKey string
	channels     string
	authKey      string
	cipherKey    string
	origin       string
	secure       bool

	logLevel string
	logPath  string
)

func main() {
	parseFlags()

	if printVersion {
		fmt.Println(clientVersion)
		return
	}

	if subscribeKey == "" || channels == "" {
		fmt.Println("both -subscribeKey and -channels are required")
		flag.Usage()
		os.Exit(1)
	}

	log, err := createLogger()
	if err != nil {
		fmt.Printf("ERROR: failed to set up logging: %s\n", err)
		os.Exit(1)
	}
	log.AddClientVersion(clientVersion)

	socket := rawsocket.New(log.GetComponentLogger("RawSocket"))
	manager := connection.New(log.GetComponentLogger("Connection"), socket)
	client := subscriber.New(log, manager)

	sub := &subscription.Subscription{
		SubscribeKey: subscribeKey,
		Channels:     strings.Split(channels, ","),
		AuthKey:      authKey,
		CipherKey:    cipherKey,
		Secure:       secure,
		Origin:       origin,
	}

	if err := client.Subscribe(sub); err != nil {
		log.Error(err)
		fmt.Printf("ERROR: failed to subscribe: %s\n", err)
		os.Exit(1)
	}

	listener := subscriber.Listen(log.GetComponentLogger("Listener"), client)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case sig := <-sigChan:
			log.Infof("Received %s, shutting down", sig)
			listener.Close(fmt.Errorf("received %s", sig))
			return
		case message := <-listener.Inbound():
			fmt.Println(string(message))
		case <-listener.Done():
			if err := listener.Err(); err != nil {
				log.Error(err)
				fmt.Printf("ERROR: %s\n", err)
				os.Exit(1)
			}
			return
		}
	}
}

func parseFlags() {
	flag.BoolVar(&printVersion, "version", false, "Print current version of pnsub")

	flag.StringVar(&subscribeKey, "subscribeKey", "", "Subscriber key identifying the account")
	flag.StringVar(&channels, "channels", "", "Comma-separated channel names to subscribe to")
	flag.StringVar(&authKey, "authKey", "", "Authorization token, if the channels require one")
	flag.StringVar(&cipherKey, "cipherKey", "", "Passphrase for decrypting message payloads")
	flag.StringVar(&origin, "origin", "", "Override the origin host[:port], mainly for testing")
	flag.BoolVar(&secure, "secure", false, "Connect over TLS instead of plain TCP")

	flag.StringVar(&logLevel, "logLevel", "info", "The log level to use -- must be one of 'disabled', 'debug', 'info', 'error'")
	flag.StringVar(&logPath, "logPath", "", "Write logs to this file instead of stderr")

	flag.Parse()

	// anything not passed on the command line can come from the environment
	fallbackToEnv(&subscribeKey, "PNSUB_SUBSCRIBE_KEY")
	fallbackToEnv(&channels, "PNSUB_CHANNELS")
	fallbackToEnv(&authKey, "PNSUB_AUTH_KEY")
	fallbackToEnv(&cipherKey, "PNSUB_CIPHER_KEY")
	fallbackToEnv(&origin, "PNSUB_ORIGIN")

	if !secure {
		secure = os.Getenv("PNSUB_SECURE") == "true"
	}
}

func fallbackToEnv(value *string, varName string) {
	if *value == "" {
		*value = os.Getenv(varName)
	}
}

func createLogger() (*logger.Logger, error) {
	config := &logger.Config{
		FilePath: logPath,
		LogLevel: logger.ToLogLevel(logLevel),
	}

	// messages go to stdout, so keep the logs on stderr unless they are
	// being written to a file
	if logPath == "" {
		config.ConsoleWriters = []io.Writer{os.Stderr}
	}

	return logger.New(config)
}
