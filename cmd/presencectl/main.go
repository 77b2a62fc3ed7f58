// presencectl is a terminal client for a presenced instance: it shows
// who is home, lists devices and performs labeling and assignment
// maintenance.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dokzlo13/presenced/internal/client"
	"github.com/dokzlo13/presenced/internal/dashboard"
	"github.com/dokzlo13/presenced/internal/presence"
)

const usage = `Usage: presencectl [flags] <command> [args]

Commands:
  status                          Show per-owner home/away status
  devices                         List all known devices
  label <mac> <label>             Set a device's friendly label
  track <mac> primary|secondary|none
                                  Classify a device for presence
  owner list                      List owners
  owner add <name> [kind]         Create an owner (person, home, guest)
  owner rename <id> <name> [kind] Rename an owner
  owner rm <id>                   Delete an owner
  owner assign <mac> <id|none>    Assign a device to an owner
  refresh                         Ask the daemon to poll the router now

Flags:
`

func main() {
	apiBase := flag.String("api", "http://localhost:4000", "presenced API base URL")
	timeout := flag.Duration("timeout", 10*time.Second, "request timeout")
	window := flag.Duration("window", 5*time.Minute, "consider-home window for status derivation")
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout+5*time.Second)
	defer cancel()

	api := client.New(*apiBase, *timeout)
	defer api.Close()
	ctl := dashboard.NewController(api, *window)

	if err := run(ctx, api, ctl, args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, api *client.Client, ctl *dashboard.Controller, args []string) error {
	switch args[0] {
	case "status":
		return cmdStatus(ctx, ctl)
	case "devices":
		return cmdDevices(ctx, ctl)
	case "label":
		if len(args) != 3 {
			return fmt.Errorf("usage: label <mac> <label>")
		}
		if err := ctl.Refresh(ctx); err != nil {
			return err
		}
		return ctl.SetLabel(ctx, args[1], args[2])
	case "track":
		if len(args) != 3 {
			return fmt.Errorf("usage: track <mac> primary|secondary|none")
		}
		return cmdTrack(ctx, ctl, args[1], args[2])
	case "owner":
		if len(args) < 2 {
			return fmt.Errorf("usage: owner list|add|rename|rm|assign ...")
		}
		return cmdOwner(ctx, api, ctl, args[1:])
	case "refresh":
		if err := api.Refresh(ctx); err != nil {
			return err
		}
		return cmdStatus(ctx, ctl)
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func cmdStatus(ctx context.Context, ctl *dashboard.Controller) error {
	if err := ctl.Refresh(ctx); err != nil {
		return err
	}

	snap := ctl.Snapshot()
	if snap != nil {
		fmt.Printf("Snapshot captured %s\n\n", snap.CapturedAt.Local().Format(time.RFC1123))
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "OWNER\tKIND\tSTATUS\tTRACKED DEVICES")
	for _, op := range ctl.OwnerPresence(time.Now()) {
		status := "away"
		if op.IsHome {
			status = "home"
		}
		names := make([]string, 0, len(op.All))
		for _, d := range op.All {
			names = append(names, d.Name())
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", op.Owner.Name, op.Owner.Kind, status, strings.Join(names, ", "))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if snap != nil && len(snap.UnclaimedDevicesNeedingLabels) > 0 {
		fmt.Printf("\n%d device(s) need labels: %s\n",
			len(snap.UnclaimedDevicesNeedingLabels),
			strings.Join(snap.UnclaimedDevicesNeedingLabels, ", "))
	}
	return nil
}

func cmdDevices(ctx context.Context, ctl *dashboard.Controller) error {
	if err := ctl.Refresh(ctx); err != nil {
		return err
	}

	devices := ctl.Devices()
	macs := make([]string, 0, len(devices))
	for mac := range devices {
		macs = append(macs, mac)
	}
	sort.Strings(macs)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "MAC\tNAME\tCONNECTED\tBAND\tRSSI\tIP\tOWNER\tPRESENCE")
	for _, mac := range macs {
		d := devices[mac]
		fmt.Fprintf(w, "%s\t%s\t%v\t%s\t%s\t%s\t%s\t%s\n",
			d.Mac, d.Name(), d.Connected,
			orDash(d.Band), rssiString(d.RSSI), orDash(d.IP),
			ownerString(d), presenceString(d.PresenceType))
	}
	return w.Flush()
}

func cmdTrack(ctx context.Context, ctl *dashboard.Controller, mac, kind string) error {
	if err := ctl.Refresh(ctx); err != nil {
		return err
	}

	switch kind {
	case "primary":
		pt := presence.PresencePrimary
		return ctl.SetPresenceType(ctx, mac, &pt)
	case "secondary":
		pt := presence.PresenceSecondary
		return ctl.SetPresenceType(ctx, mac, &pt)
	case "none":
		return ctl.SetPresenceType(ctx, mac, nil)
	default:
		return fmt.Errorf("presence kind must be primary, secondary or none")
	}
}

func cmdOwner(ctx context.Context, api *client.Client, ctl *dashboard.Controller, args []string) error {
	switch args[0] {
	case "list":
		owners, err := api.ListOwners(ctx)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tKIND")
		for _, o := range owners {
			name := o.Name
			if o.IsSystem() {
				name += " (system)"
			}
			fmt.Fprintf(w, "%d\t%s\t%s\n", o.ID, name, o.Kind)
		}
		return w.Flush()

	case "add":
		if len(args) < 2 {
			return fmt.Errorf("usage: owner add <name> [kind]")
		}
		kind := presence.OwnerKindPerson
		if len(args) > 2 {
			kind = presence.OwnerKind(args[2])
		}
		o, err := api.CreateOwner(ctx, args[1], kind)
		if err != nil {
			return err
		}
		fmt.Printf("created owner %d (%s)\n", o.ID, o.Name)
		return nil

	case "rename":
		if len(args) < 3 {
			return fmt.Errorf("usage: owner rename <id> <name> [kind]")
		}
		id, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid owner id %q", args[1])
		}
		kind := presence.OwnerKindPerson
		if len(args) > 3 {
			kind = presence.OwnerKind(args[3])
		}
		_, err = api.UpdateOwner(ctx, id, args[2], kind)
		return err

	case "rm":
		if len(args) != 2 {
			return fmt.Errorf("usage: owner rm <id>")
		}
		id, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid owner id %q", args[1])
		}
		return api.DeleteOwner(ctx, id)

	case "assign":
		if len(args) != 3 {
			return fmt.Errorf("usage: owner assign <mac> <id|none>")
		}
		if err := ctl.Refresh(ctx); err != nil {
			return err
		}
		if args[2] == "none" {
			return ctl.SetOwner(ctx, args[1], nil)
		}
		id, err := strconv.ParseInt(args[2], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid owner id %q", args[2])
		}
		return ctl.SetOwner(ctx, args[1], &id)

	default:
		return fmt.Errorf("unknown owner subcommand %q", args[0])
	}
}

func orDash(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}

func rssiString(v *int) string {
	if v == nil {
		return "-"
	}
	return strconv.Itoa(*v)
}

func ownerString(d presence.Device) string {
	if d.OwnerName != nil {
		return *d.OwnerName
	}
	if d.OwnerID != nil {
		return fmt.Sprintf("#%d (deleted)", *d.OwnerID)
	}
	return "-"
}

func presenceString(pt *presence.PresenceType) string {
	if pt == nil {
		return "-"
	}
	switch *pt {
	case presence.PresencePrimary:
		return "primary"
	case presence.PresenceSecondary:
		return "secondary"
	default:
		return strconv.Itoa(int(*pt))
	}
}
