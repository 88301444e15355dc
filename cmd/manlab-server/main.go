// Copyright 2024 The ManLab Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command manlab-server is ManLab's server binary: an ad-hoc CLI over
// ScannerEngine/DiscoveryEngine/SpeedTestEngine for one-shot
// diagnostics, plus a "serve" subcommand that runs the always-on
// ingestion components (SyslogReceiver, PacketCaptureEngine,
// HistoryJournal). Grounded on cmd/kola's cobra-tree-of-subcommands
// shape, generalized from "one test suite" to "one probe per
// subcommand".
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/coreos/pkg/capnslog"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/raulshma/manlab/capability"
	"github.com/raulshma/manlab/discovery"
	"github.com/raulshma/manlab/journal"
	"github.com/raulshma/manlab/pcap"
	"github.com/raulshma/manlab/ratelimit"
	"github.com/raulshma/manlab/scanner"
	"github.com/raulshma/manlab/speedtest"
	"github.com/raulshma/manlab/syslog"
)

var (
	log = logrus.WithField("component", "manlab-server")

	// logLevel gates the engine packages' capnslog output (C1-C9,
	// C14); it implements pflag.Value directly, the way
	// cli.Execute's --log-level flag does.
	logLevel = capnslog.NOTICE
	verbose  bool
	debug    bool

	root = &cobra.Command{
		Use:          "manlab-server",
		Short:        "ManLab server: network diagnostics and always-on ingestion",
		SilenceUsage: true,
	}
)

// capnslogToLogrus maps an engine-side capnslog level to the logrus
// level this binary's own CLI-layer logging uses, so --log-level
// controls both halves of the ambient logging split consistently.
func capnslogToLogrus(l capnslog.LogLevel) logrus.Level {
	switch l {
	case capnslog.CRITICAL, capnslog.ERROR:
		return logrus.ErrorLevel
	case capnslog.WARNING:
		return logrus.WarnLevel
	case capnslog.NOTICE, capnslog.INFO:
		return logrus.InfoLevel
	default:
		return logrus.DebugLevel
	}
}

func main() {
	root.PersistentFlags().Var(&logLevel, "log-level", "Set global log level.")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Alias for --log-level=INFO")
	root.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "Alias for --log-level=DEBUG")
	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		switch {
		case debug:
			logLevel = capnslog.DEBUG
		case verbose:
			logLevel = capnslog.INFO
		}
		capnslog.SetFormatter(capnslog.NewStringFormatter(cmd.OutOrStderr()))
		capnslog.SetGlobalLogLevel(logLevel)
		logrus.SetLevel(capnslogToLogrus(logLevel))
		return nil
	}

	root.AddCommand(scanCmd(), discoverCmd(), speedtestCmd(), serveCmd())

	if err := root.Execute(); err != nil {
		log.Fatal(err)
	}
}

func newEngine() *scanner.Engine {
	return scanner.New(
		scanner.WithArp(capability.NewLinuxArp()),
		scanner.WithOui(capability.NewFileOui()),
	)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func scanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "One-shot network probes (ScannerEngine)",
	}

	var timeout time.Duration
	cmd.PersistentFlags().DurationVar(&timeout, "timeout", 3*time.Second, "per-probe timeout")

	ping := &cobra.Command{
		Use:   "ping <host>",
		Short: "ICMP/TCP reachability probe",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return printJSON(newEngine().Ping(args[0], timeout))
		},
	}

	portscan := &cobra.Command{
		Use:   "portscan <host> <ports>",
		Short: "Scan a comma-separated port list, e.g. 22,80,443",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ports, err := parsePorts(args[1])
			if err != nil {
				return err
			}
			return printJSON(newEngine().PortScan(args[0], ports, timeout, 32))
		},
	}

	subnet := &cobra.Command{
		Use:   "subnet <cidr>",
		Short: "Sweep a CIDR range for live hosts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var hosts []scanner.DiscoveredHost
			n, err := newEngine().SubnetScan(cmd.Context(), args[0], timeout, func(h scanner.DiscoveredHost) {
				hosts = append(hosts, h)
			})
			if err != nil {
				return err
			}
			log.Infof("subnet scan: %d addresses scanned, %d hosts responded", n, len(hosts))
			return printJSON(hosts)
		},
	}

	traceroute := &cobra.Command{
		Use:   "traceroute <host>",
		Short: "Trace the route to a host",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := newEngine().TraceRoute(cmd.Context(), args[0], scanner.DefaultMaxHops, timeout, nil)
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	}

	dns := &cobra.Command{
		Use:   "dns <name>",
		Short: "Resolve A/AAAA/MX/TXT/NS records, optionally reverse",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := newEngine().DnsLookup(args[0], true)
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	}

	whois := &cobra.Command{
		Use:   "whois <domain>",
		Short: "Query WHOIS for a domain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := newEngine().Whois(args[0])
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	}

	wol := &cobra.Command{
		Use:   "wol <mac>",
		Short: "Send a Wake-on-LAN magic packet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			broadcast, _ := cmd.Flags().GetString("broadcast")
			port, _ := cmd.Flags().GetInt("port")
			return newEngine().WakeOnLan(args[0], broadcast, port)
		},
	}
	wol.Flags().String("broadcast", "255.255.255.255", "broadcast address")
	wol.Flags().Int("port", 9, "UDP port")

	tls := &cobra.Command{
		Use:   "tls <host> [port]",
		Short: "Inspect a TLS certificate chain",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			port := 443
			if len(args) == 2 {
				p, err := strconv.Atoi(args[1])
				if err != nil {
					return fmt.Errorf("invalid port %q: %w", args[1], err)
				}
				port = p
			}
			result, err := newEngine().InspectCertificate(args[0], port)
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	}

	publicip := &cobra.Command{
		Use:   "publicip",
		Short: "Resolve this host's public IP",
		RunE: func(cmd *cobra.Command, args []string) error {
			return printJSON(newEngine().GetPublicIP())
		},
	}

	cmd.AddCommand(ping, portscan, subnet, traceroute, dns, whois, wol, tls, publicip)
	return cmd
}

func parsePorts(spec string) ([]int, error) {
	var ports []int
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		p, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid port %q: %w", part, err)
		}
		ports = append(ports, p)
	}
	return ports, nil
}

func discoverCmd() *cobra.Command {
	var duration time.Duration
	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Run mDNS/SSDP discovery (DiscoveryEngine)",
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := discovery.New().Scan(cmd.Context(), discovery.ScanOptions{
				ScanDuration: duration,
				OnMdnsDevice: func(d discovery.MdnsDevice) { log.Infof("mdns: %s %s", d.InstanceName, d.IPAddress) },
				OnUpnpDevice: func(d discovery.UpnpDevice) { log.Infof("ssdp: %s %s", d.Server, d.Location) },
			})
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	}
	cmd.Flags().DurationVar(&duration, "duration", discovery.DefaultScanDuration, "how long to listen")
	return cmd
}

func speedtestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "speedtest",
		Short: "Run an M-Lab ndt7 download/upload speed test",
		RunE: func(cmd *cobra.Command, args []string) error {
			result := speedtest.New().Run(cmd.Context(), func(p speedtest.Progress) {
				log.Infof("%s: %.2f Mbps (elapsed %dms)", p.Phase, p.Mbps, p.ElapsedMs)
			})
			return printJSON(result)
		},
	}
}

func serveCmd() *cobra.Command {
	var syslogPort int
	var pcapDevice string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the always-on ingestion pipeline (syslog + packet capture)",
		RunE: func(cmd *cobra.Command, args []string) error {
			limiter := ratelimit.New()

			hist := journal.New(journal.NewMemorySink())
			defer hist.Close()

			recv := syslog.New(syslog.Config{Port: syslogPort})
			if err := recv.Start(); err != nil {
				return fmt.Errorf("starting syslog receiver: %w", err)
			}
			defer recv.Stop()
			log.Infof("syslog receiver listening on %s", recv.Addr())

			sub, unsubscribe := recv.Subscribe()
			defer unsubscribe()
			go func() {
				for msg := range sub {
					if limited, _ := limiter.CheckLimit("serve", "syslog"); limited {
						continue
					}
					limiter.Record("serve", "syslog")
					hist.Record("syslog", msg.Host, nil, msg.Message, true, 0, "", "serve")
				}
			}()

			capEngine := pcap.New()
			if pcapDevice != "" {
				if err := capEngine.StartCapture(pcap.Options{Device: pcapDevice}); err != nil {
					log.Warnf("packet capture unavailable: %v", err)
				} else {
					defer capEngine.StopCapture()
					pktSub, pktUnsub := capEngine.Subscribe()
					defer pktUnsub()
					go func() {
						for batch := range pktSub {
							if limited, _ := limiter.CheckLimit("serve", "pcap"); limited {
								continue
							}
							limiter.Record("serve", "pcap")
							hist.Record("pcap", pcapDevice, nil, fmt.Sprintf("%d packets", len(batch)), true, 0, "", "serve")
						}
					}()
				}
			}

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
			<-stop
			log.Info("shutting down")
			return nil
		},
	}

	cmd.Flags().IntVar(&syslogPort, "syslog-port", syslog.DefaultPort, "UDP port for the syslog receiver")
	cmd.Flags().StringVar(&pcapDevice, "pcap-device", "", "network device to capture on (empty disables capture)")
	return cmd
}
