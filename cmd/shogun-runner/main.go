// Command shogun-runner performs Shogun's DNS automation actions and prints
// the result as JSON. It is invoked by the router for DNS-shaped requests and
// usable standalone:
//
//	shogun-runner setup_dns --domain example.com
//	shogun-runner verify_dns --domain example.com --check-nameservers
//	shogun-runner dns_info --domain example.com
//	shogun-runner add_record --domain example.com --record-name www --record-type CNAME --record-value cname.vercel-dns.com
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/pulseops/pulser/pkg/automation"
	"github.com/pulseops/pulser/pkg/dnscli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if len(os.Args) < 2 {
		usage()
	}
	action := os.Args[1]

	fs := flag.NewFlagSet("shogun-runner", flag.ExitOnError)
	domain := fs.String("domain", "", "Domain to work with")
	recordType := fs.String("record-type", "A", "DNS record type (A, CNAME, TXT, MX)")
	recordName := fs.String("record-name", "@", "DNS record name (@ for root domain)")
	recordValue := fs.String("record-value", "", "DNS record value")
	checkNameservers := fs.Bool("check-nameservers", false, "Check nameserver delegation during verification")
	scope := fs.String("scope", "", "Vercel team scope")
	if err := fs.Parse(os.Args[2:]); err != nil {
		os.Exit(2)
	}
	if strings.TrimSpace(*domain) == "" {
		fatal(fmt.Errorf("missing required flag --domain"))
	}

	var dnsOpts []dnscli.Option
	if *scope != "" {
		dnsOpts = append(dnsOpts, dnscli.WithScope(*scope))
	}
	dns := dnscli.New(dnsOpts...)
	shogun := automation.New(automation.WithDNSClient(dns))

	var result any
	switch action {
	case "setup_dns":
		result = shogun.SetupDNS(ctx, *domain)
	case "verify_dns":
		result = shogun.VerifyDNS(ctx, *domain, *checkNameservers)
	case "dns_info":
		result = shogun.DNSInfo(ctx, *domain)
	case "add_record":
		result = dns.AddRecord(ctx, *domain, *recordName, *recordType, *recordValue)
	default:
		usage()
	}

	payload, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		fatal(err)
	}
	fmt.Println(string(payload))
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: shogun-runner <setup_dns|verify_dns|dns_info|add_record> --domain <domain> [flags]")
	os.Exit(2)
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
