package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joshp123/gobotvac/internal/rpc"
	"github.com/joshp123/gobotvac/plugins/botvac"
)

func newRobotsCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "robots",
		Aliases: []string{"robot"},
		Short:   "List and control robots",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List robots with their last known state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := opts.connect(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			robots, err := listRobots(s)
			if err != nil {
				return err
			}
			if s.out.json {
				return s.out.printJSON(robots)
			}
			printRobots(s.out, robots)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "state <robot>",
		Short: "Fetch fresh state from a robot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return robotCall(opts, cmd, args[0], "GetState", nil, func(s *session, resp *structpb.Struct) error {
				var view botvac.RobotView
				if err := decode(resp, &view); err != nil {
					return err
				}
				if s.out.json {
					return s.out.printJSON(view)
				}
				printRobotDetail(s.out, view)
				return nil
			})
		},
	})

	for _, action := range botvac.Actions {
		cmd.AddCommand(newActionCmd(opts, action))
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "schedule <robot>",
		Short: "Show the cleaning schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return robotCall(opts, cmd, args[0], "GetSchedule", nil, func(s *session, resp *structpb.Struct) error {
				var out struct {
					Schedule botvac.Schedule `json:"schedule"`
				}
				if err := decode(resp, &out); err != nil {
					return err
				}
				if s.out.json {
					return s.out.printJSON(out.Schedule)
				}
				fmt.Fprintf(s.out.w, "ENABLED: %t\n", out.Schedule.Enabled)
				rows := [][]string{{"DAY", "START", "MODE"}}
				for _, event := range out.Schedule.Events {
					rows = append(rows, []string{weekday(event.Day), event.StartTime, modeName(event.Mode)})
				}
				s.out.table(rows)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "maps <robot>",
		Short: "List persistent floor maps",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return robotCall(opts, cmd, args[0], "GetPersistentMaps", nil, func(s *session, resp *structpb.Struct) error {
				var out struct {
					Maps []botvac.PersistentMap `json:"maps"`
				}
				if err := decode(resp, &out); err != nil {
					return err
				}
				if s.out.json {
					return s.out.printJSON(out.Maps)
				}
				rows := [][]string{{"MAP", "ID"}}
				for _, m := range out.Maps {
					rows = append(rows, []string{m.Name, m.ID})
				}
				s.out.table(rows)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "boundaries <robot> <map>",
		Short: "List zones and no-go lines of a map (map name or id)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.connect(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			serial, err := resolveRobot(s, args[0])
			if err != nil {
				return err
			}
			mapID, err := resolveMap(s, serial, args[1])
			if err != nil {
				return err
			}
			resp, err := invoke(s, "GetMapBoundaries", map[string]any{"robot": serial, "map_id": mapID})
			if err != nil {
				return err
			}
			var out botvac.MapBoundaries
			if err := decode(resp, &out); err != nil {
				return err
			}
			if s.out.json {
				return s.out.printJSON(out)
			}
			rows := [][]string{{"BOUNDARY", "TYPE", "ENABLED", "ID"}}
			for _, b := range out.Boundaries {
				rows = append(rows, []string{b.Name, b.Type, strconv.FormatBool(b.Enabled), b.ID})
			}
			s.out.table(rows)
			return nil
		},
	})

	return cmd
}

func newActionCmd(opts *cliOptions, action string) *cobra.Command {
	var (
		eco, extraCare, noGoLines, repeat bool
		width, height                     int
	)
	use := action + " <robot>"
	if action == botvac.ActionBoundary {
		use = action + " <robot> <boundary_id>"
	}
	cmd := &cobra.Command{
		Use:   use,
		Short: "Send the " + action + " command",
		Args: func(cmd *cobra.Command, args []string) error {
			if action == botvac.ActionBoundary {
				return cobra.ExactArgs(2)(cmd, args)
			}
			return cobra.ExactArgs(1)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			req := map[string]any{"command": action}
			if action == botvac.ActionBoundary {
				req["boundary_id"] = args[1]
			}
			flags := cmd.Flags()
			if flags.Changed("eco") {
				req["eco"] = eco
			}
			if flags.Changed("extra-care") {
				req["extra_care"] = extraCare
			}
			if flags.Changed("no-go-lines") {
				req["no_go_lines"] = noGoLines
			}
			if flags.Changed("repeat") {
				req["spot_repeat"] = repeat
			}
			if width > 0 {
				req["spot_width"] = width
			}
			if height > 0 {
				req["spot_height"] = height
			}

			return robotCall(opts, cmd, args[0], "Command", req, func(s *session, resp *structpb.Struct) error {
				var view botvac.RobotView
				if err := decode(resp, &view); err != nil {
					return err
				}
				if s.out.json {
					return s.out.printJSON(view)
				}
				fmt.Fprintf(s.out.w, "%s: %s (%s)\n", view.Name, view.StateName, view.ActionName)
				return nil
			})
		},
	}

	switch action {
	case botvac.ActionStart, botvac.ActionBoundary:
		cmd.Flags().BoolVar(&eco, "eco", false, "eco mode")
		cmd.Flags().BoolVar(&extraCare, "extra-care", false, "extra care navigation")
		if action == botvac.ActionStart {
			cmd.Flags().BoolVar(&noGoLines, "no-go-lines", false, "respect no-go lines")
		}
	case botvac.ActionSpot:
		cmd.Flags().BoolVar(&eco, "eco", false, "eco mode")
		cmd.Flags().BoolVar(&extraCare, "extra-care", false, "extra care navigation")
		cmd.Flags().BoolVar(&repeat, "repeat", false, "clean the spot twice")
		cmd.Flags().IntVar(&width, "width", 0, "spot width in cm")
		cmd.Flags().IntVar(&height, "height", 0, "spot height in cm")
	}
	return cmd
}

// robotCall resolves the robot argument, invokes method and hands the
// response to render.
func robotCall(opts *cliOptions, cmd *cobra.Command, robot, method string, req map[string]any, render func(*session, *structpb.Struct) error) error {
	s, err := opts.connect(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	serial, err := resolveRobot(s, robot)
	if err != nil {
		return err
	}
	if req == nil {
		req = map[string]any{}
	}
	req["robot"] = serial

	resp, err := invoke(s, method, req)
	if err != nil {
		return err
	}
	return render(s, resp)
}

func invoke(s *session, method string, req map[string]any) (*structpb.Struct, error) {
	if req == nil {
		req = map[string]any{}
	}
	in, err := rpc.ToStruct(req)
	if err != nil {
		return nil, err
	}
	resp, err := rpc.Invoke(s.ctx, s.conn, botvac.ServiceName, method, in)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	return resp, nil
}

func decode(resp *structpb.Struct, v any) error {
	return rpc.FromStruct(resp, v)
}

func listRobots(s *session) ([]botvac.RobotView, error) {
	resp, err := invoke(s, "ListRobots", nil)
	if err != nil {
		return nil, err
	}
	var out struct {
		Robots []botvac.RobotView `json:"robots"`
	}
	if err := decode(resp, &out); err != nil {
		return nil, err
	}
	return out.Robots, nil
}

func resolveRobot(s *session, input string) (string, error) {
	robots, err := listRobots(s)
	if err != nil {
		return "", err
	}
	options := make(map[string]string, len(robots))
	for _, robot := range robots {
		options[robot.Name] = robot.Serial
	}
	return resolveNamedID("robot", input, options)
}

func resolveMap(s *session, serial, input string) (string, error) {
	resp, err := invoke(s, "GetPersistentMaps", map[string]any{"robot": serial})
	if err != nil {
		return "", err
	}
	var out struct {
		Maps []botvac.PersistentMap `json:"maps"`
	}
	if err := decode(resp, &out); err != nil {
		return "", err
	}
	options := make(map[string]string, len(out.Maps))
	for _, m := range out.Maps {
		options[m.Name] = m.ID
	}
	return resolveNamedID("map", input, options)
}

func printRobots(out outputMode, robots []botvac.RobotView) {
	rows := [][]string{{"ROBOT", "SERIAL", "STATE", "ACTION", "BATTERY", "DOCKED"}}
	for _, robot := range robots {
		battery := "-"
		if robot.Snapshot.Refreshed {
			battery = strconv.FormatFloat(robot.Snapshot.Charge, 'f', 0, 64) + "%"
		}
		rows = append(rows, []string{
			robot.Name,
			robot.Serial,
			robot.StateName,
			robot.ActionName,
			battery,
			strconv.FormatBool(robot.Snapshot.IsDocked),
		})
	}
	out.table(rows)
}

func printRobotDetail(out outputMode, view botvac.RobotView) {
	snap := view.Snapshot
	fmt.Fprintf(out.w, "ROBOT:    %s (%s)\n", view.Name, view.Serial)
	fmt.Fprintf(out.w, "STATE:    %s\n", view.StateName)
	fmt.Fprintf(out.w, "ACTION:   %s\n", view.ActionName)
	fmt.Fprintf(out.w, "BATTERY:  %.0f%%\n", snap.Charge)
	fmt.Fprintf(out.w, "CHARGING: %t\n", snap.IsCharging)
	fmt.Fprintf(out.w, "DOCKED:   %t\n", snap.IsDocked)
	fmt.Fprintf(out.w, "SCHEDULE: %t\n", snap.IsScheduleEnabled)
	if snap.Error != "" {
		fmt.Fprintf(out.w, "ERROR:    %s\n", snap.Error)
	}
	if snap.Alert != "" {
		fmt.Fprintf(out.w, "ALERT:    %s\n", snap.Alert)
	}
}

var weekdays = []string{"sun", "mon", "tue", "wed", "thu", "fri", "sat"}

func weekday(day int) string {
	if day >= 0 && day < len(weekdays) {
		return weekdays[day]
	}
	return strconv.Itoa(day)
}

func modeName(mode botvac.Mode) string {
	switch mode {
	case botvac.ModeEco:
		return "eco"
	case botvac.ModeTurbo:
		return "turbo"
	default:
		return strconv.Itoa(int(mode))
	}
}
