package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"example.com/fitledger/internal/activity"
	"example.com/fitledger/internal/daykey"
	"example.com/fitledger/internal/nutrition"
	"example.com/fitledger/internal/recovery"
	"example.com/fitledger/internal/tracker"
)

type cli struct {
	open  opener
	flags globalFlags
	now   func() time.Time
}

func newRootCmd(open opener) *cobra.Command {
	c := &cli{open: open, now: time.Now}

	root := &cobra.Command{
		Use:           "ledgerctl",
		Short:         "Inspect and edit the fitness ledger",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&c.flags.store, "store", "", "Store backend (memory, sqlite, postgres, redis)")
	pf.StringVar(&c.flags.sqlitePath, "sqlite-path", "", "SQLite database file")
	pf.StringVar(&c.flags.timezone, "timezone", "", "IANA timezone that defines calendar days")
	pf.StringVar(&c.flags.logLevel, "log-level", "", "Log level")
	pf.BoolVarP(&c.flags.json, "json", "j", false, "Output as JSON")

	root.AddCommand(c.logCmd())
	root.AddCommand(c.streakCmd())
	root.AddCommand(c.calendarCmd())
	root.AddCommand(c.statsCmd())
	root.AddCommand(c.mealCmd())
	root.AddCommand(c.totalsCmd())
	root.AddCommand(c.goalsCmd())
	root.AddCommand(c.sleepCmd())
	return root
}

func (c *cli) run(cmd *cobra.Command, fn func(ctx context.Context, t *tracker.Tracker, out io.Writer) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	t, closeFn, err := c.open(ctx, c.flags)
	if err != nil {
		return err
	}
	defer closeFn()
	return fn(ctx, t, cmd.OutOrStdout())
}

func (c *cli) day(t *tracker.Tracker, raw string) (daykey.Key, error) {
	if raw == "" {
		return t.Policy().FromTime(c.now()), nil
	}
	return daykey.Parse(raw)
}

func (c *cli) emit(out io.Writer, v any, text func(io.Writer)) error {
	if c.flags.json {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(out)
	return nil
}

func (c *cli) logCmd() *cobra.Command {
	var at string
	cmd := &cobra.Command{
		Use:   "log <planner|meal|sleep>",
		Short: "Mark an activity kind as done",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := activity.ParseKind(args[0])
			if err != nil {
				return err
			}
			return c.run(cmd, func(ctx context.Context, t *tracker.Tracker, out io.Writer) error {
				when, err := parseAt(at, t.Policy().Location(), c.now())
				if err != nil {
					return err
				}
				changed, err := t.LogAction(ctx, kind, when)
				if err != nil {
					return err
				}
				day := t.Policy().FromTime(when)
				return c.emit(out, map[string]any{"date": day, "kind": kind, "changed": changed}, func(w io.Writer) {
					if changed {
						fmt.Fprintf(w, "logged %s on %s\n", kind, day)
					} else {
						fmt.Fprintf(w, "%s already logged on %s\n", kind, day)
					}
				})
			})
		},
	}
	cmd.Flags().StringVar(&at, "at", "", "When it happened (RFC 3339 or YYYY-MM-DD)")
	return cmd
}

func (c *cli) streakCmd() *cobra.Command {
	var today string
	cmd := &cobra.Command{
		Use:   "streak",
		Short: "Show the current streak",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.run(cmd, func(_ context.Context, t *tracker.Tracker, out io.Writer) error {
				day, err := c.day(t, today)
				if err != nil {
					return err
				}
				streak := t.CurrentStreak(day)
				return c.emit(out, map[string]any{"today": day, "current_streak": streak}, func(w io.Writer) {
					fmt.Fprintf(w, "%d day streak as of %s\n", streak, day)
				})
			})
		},
	}
	cmd.Flags().StringVar(&today, "today", "", "Evaluate as of this day (YYYY-MM-DD)")
	return cmd
}

func (c *cli) calendarCmd() *cobra.Command {
	var month, today string
	cmd := &cobra.Command{
		Use:   "calendar",
		Short: "Show which days of a month have activity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.run(cmd, func(_ context.Context, t *tracker.Tracker, out io.Writer) error {
				day, err := c.day(t, today)
				if err != nil {
					return err
				}
				m := day.Month()
				if month != "" {
					if m, err = daykey.ParseMonth(month); err != nil {
						return err
					}
				}
				days := t.MonthCalendar(m, day)
				return c.emit(out, days, func(w io.Writer) { renderCalendar(w, m, days) })
			})
		},
	}
	cmd.Flags().StringVar(&month, "month", "", "Month to show (YYYY-MM)")
	cmd.Flags().StringVar(&today, "today", "", "Day to highlight (YYYY-MM-DD)")
	return cmd
}

func renderCalendar(w io.Writer, m daykey.Month, days []activity.CalendarDay) {
	fmt.Fprintln(w, m.String())
	var line strings.Builder
	for i, d := range days {
		mark := " ."
		if d.HasRecord {
			mark = " #"
		}
		if d.IsToday {
			mark = mark[:1] + "[" + mark[1:] + "]"
		}
		fmt.Fprintf(&line, "%3d%s", d.Day, mark)
		if (i+1)%7 == 0 || i == len(days)-1 {
			fmt.Fprintln(w, line.String())
			line.Reset()
		}
	}
}

func (c *cli) statsCmd() *cobra.Command {
	var today string
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show streaks, totals and badges",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.run(cmd, func(_ context.Context, t *tracker.Tracker, out io.Writer) error {
				day, err := c.day(t, today)
				if err != nil {
					return err
				}
				stats := t.Stats(day)
				return c.emit(out, stats, func(w io.Writer) {
					tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
					fmt.Fprintf(tw, "current streak\t%d\n", stats.CurrentStreak)
					fmt.Fprintf(tw, "longest streak\t%d\n", stats.LongestStreak)
					fmt.Fprintf(tw, "active days\t%d\n", stats.ActiveDays)
					fmt.Fprintf(tw, "workout days\t%d\n", stats.TotalWorkouts)
					fmt.Fprintf(tw, "meal days\t%d\n", stats.TotalMeals)
					fmt.Fprintf(tw, "sleep days\t%d\n", stats.TotalSleepLogs)
					for _, b := range stats.Badges {
						state := "locked"
						if b.Earned {
							state = "earned"
						}
						fmt.Fprintf(tw, "badge %s\t%s\n", b.Title, state)
					}
					_ = tw.Flush()
				})
			})
		},
	}
	cmd.Flags().StringVar(&today, "today", "", "Evaluate as of this day (YYYY-MM-DD)")
	return cmd
}

func (c *cli) mealCmd() *cobra.Command {
	meal := &cobra.Command{
		Use:   "meal",
		Short: "Add, remove and list meals",
	}

	var in nutrition.MealInput
	var at string
	add := &cobra.Command{
		Use:   "add",
		Short: "Log a meal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.run(cmd, func(ctx context.Context, t *tracker.Tracker, out io.Writer) error {
				when, err := parseAt(at, t.Policy().Location(), c.now())
				if err != nil {
					return err
				}
				m, err := t.AddMeal(ctx, in, when)
				if err != nil {
					return err
				}
				return c.emit(out, m, func(w io.Writer) {
					fmt.Fprintf(w, "added %s (%d kcal) on %s as %s\n", m.Name, m.Calories, m.Day, m.ID)
				})
			})
		},
	}
	af := add.Flags()
	af.StringVar(&in.Name, "name", "", "Meal name")
	af.IntVar(&in.Calories, "calories", 0, "Calories (kcal)")
	af.IntVar(&in.Protein, "protein", 0, "Protein (g)")
	af.IntVar(&in.Carbs, "carbs", 0, "Carbohydrates (g)")
	af.IntVar(&in.Fats, "fats", 0, "Fats (g)")
	af.IntVar(&in.Fiber, "fiber", 0, "Fiber (g)")
	af.StringVar(&at, "at", "", "When it was eaten (RFC 3339 or YYYY-MM-DD)")
	_ = add.MarkFlagRequired("name")

	remove := &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove a meal by id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, func(ctx context.Context, t *tracker.Tracker, out io.Writer) error {
				removed, err := t.RemoveMeal(ctx, args[0])
				if err != nil {
					return err
				}
				if !removed {
					return fmt.Errorf("meal %s not found", args[0])
				}
				return c.emit(out, map[string]any{"id": args[0], "removed": true}, func(w io.Writer) {
					fmt.Fprintf(w, "removed %s\n", args[0])
				})
			})
		},
	}

	var day string
	list := &cobra.Command{
		Use:   "list",
		Short: "List meals, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.run(cmd, func(_ context.Context, t *tracker.Tracker, out io.Writer) error {
				meals := t.Meals()
				if day != "" {
					key, err := daykey.Parse(day)
					if err != nil {
						return err
					}
					meals = t.MealsForDay(key)
				}
				return c.emit(out, meals, func(w io.Writer) {
					tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
					fmt.Fprintln(tw, "ID\tDATE\tNAME\tKCAL\tP\tC\tF\tFIBER")
					for _, m := range meals {
						fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%d\n", m.ID, m.Day, m.Name, m.Calories, m.Protein, m.Carbs, m.Fats, m.Fiber)
					}
					_ = tw.Flush()
				})
			})
		},
	}
	list.Flags().StringVar(&day, "day", "", "Only meals eaten on this day (YYYY-MM-DD)")

	meal.AddCommand(add, remove, list)
	return meal
}

func (c *cli) totalsCmd() *cobra.Command {
	var day string
	cmd := &cobra.Command{
		Use:   "totals",
		Short: "Show a day's intake against the goals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.run(cmd, func(_ context.Context, t *tracker.Tracker, out io.Writer) error {
				key, err := c.day(t, day)
				if err != nil {
					return err
				}
				s := t.Summary(key)
				return c.emit(out, s, func(w io.Writer) {
					tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
					fmt.Fprintf(tw, "date\t%s\n", s.Day)
					fmt.Fprintf(tw, "calories\t%d / %d\t%.0f%%\n", s.Totals.Calories, s.Goals.Calories, s.Progress.Calories)
					fmt.Fprintf(tw, "protein\t%d / %d\t%.0f%%\n", s.Totals.Protein, s.Goals.Protein, s.Progress.Protein)
					fmt.Fprintf(tw, "carbs\t%d / %d\t%.0f%%\n", s.Totals.Carbs, s.Goals.Carbs, s.Progress.Carbs)
					fmt.Fprintf(tw, "fiber\t%d / %d\t%.0f%%\n", s.Totals.Fiber, s.Goals.Fiber, s.Progress.Fiber)
					fmt.Fprintf(tw, "remaining\t%d kcal\n", s.Remaining)
					_ = tw.Flush()
				})
			})
		},
	}
	cmd.Flags().StringVar(&day, "day", "", "Day to summarise (YYYY-MM-DD)")
	return cmd
}

func (c *cli) goalsCmd() *cobra.Command {
	goals := &cobra.Command{
		Use:   "goals",
		Short: "Show or set daily nutrition goals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.run(cmd, func(_ context.Context, t *tracker.Tracker, out io.Writer) error {
				g := t.Goals()
				return c.emit(out, g, func(w io.Writer) { printGoals(w, g) })
			})
		},
	}

	var next nutrition.Goals
	set := &cobra.Command{
		Use:   "set",
		Short: "Replace the goals; unset flags keep their current value",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.run(cmd, func(ctx context.Context, t *tracker.Tracker, out io.Writer) error {
				g := t.Goals()
				f := cmd.Flags()
				if f.Changed("calories") {
					g.Calories = next.Calories
				}
				if f.Changed("protein") {
					g.Protein = next.Protein
				}
				if f.Changed("carbs") {
					g.Carbs = next.Carbs
				}
				if f.Changed("fiber") {
					g.Fiber = next.Fiber
				}
				if err := t.SetGoals(ctx, g); err != nil {
					return err
				}
				return c.emit(out, g, func(w io.Writer) { printGoals(w, g) })
			})
		},
	}
	sf := set.Flags()
	sf.IntVar(&next.Calories, "calories", 0, "Daily calories (kcal)")
	sf.IntVar(&next.Protein, "protein", 0, "Daily protein (g)")
	sf.IntVar(&next.Carbs, "carbs", 0, "Daily carbohydrates (g)")
	sf.IntVar(&next.Fiber, "fiber", 0, "Daily fiber (g)")

	goals.AddCommand(set)
	return goals
}

func printGoals(w io.Writer, g nutrition.Goals) {
	fmt.Fprintf(w, "calories %d kcal, protein %dg, carbs %dg, fiber %dg\n", g.Calories, g.Protein, g.Carbs, g.Fiber)
}

func (c *cli) sleepCmd() *cobra.Command {
	sleep := &cobra.Command{
		Use:   "sleep",
		Short: "Record and review sleep",
	}

	var limit int
	history := &cobra.Command{
		Use:   "history",
		Short: "List sleep logs, most recent day first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.run(cmd, func(_ context.Context, t *tracker.Tracker, out io.Writer) error {
				logs := t.SleepHistory(limit)
				return c.emit(out, logs, func(w io.Writer) {
					tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
					fmt.Fprintln(tw, "DATE\tHOURS\tQUALITY\tSORENESS\tREADINESS")
					for _, l := range logs {
						score := "-"
						if l.ReadinessScore != nil {
							score = fmt.Sprintf("%d (%s)", *l.ReadinessScore, recovery.ScoreBand(*l.ReadinessScore))
						}
						fmt.Fprintf(tw, "%s\t%.1f\t%s\t%s\t%s\n", l.Day, l.Hours, l.Quality, l.Soreness, score)
					}
					_ = tw.Flush()
					if avg, ok := t.AverageReadiness(7); ok {
						fmt.Fprintf(w, "7-log average readiness %.1f\n", avg)
					}
				})
			})
		},
	}
	history.Flags().IntVarP(&limit, "limit", "n", 14, "Maximum logs to show (0 for all)")

	var hours float64
	var quality, soreness, at string
	record := &cobra.Command{
		Use:   "record",
		Short: "Record last night's sleep and get a readiness analysis",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			q, err := recovery.ParseQuality(quality)
			if err != nil {
				return err
			}
			s, err := recovery.ParseSoreness(soreness)
			if err != nil {
				return err
			}
			return c.run(cmd, func(ctx context.Context, t *tracker.Tracker, out io.Writer) error {
				when, err := parseAt(at, t.Policy().Location(), c.now())
				if err != nil {
					return err
				}
				res, err := t.RecordSleep(ctx, recovery.Input{Hours: hours, Quality: q, Soreness: s}, when)
				if err != nil {
					return err
				}
				return c.emit(out, res, func(w io.Writer) {
					fmt.Fprintf(w, "%s: readiness %d (%s), %s\n", res.Log.Day, res.Analysis.ReadinessScore, res.Band, res.Analysis.Recommendation)
					if res.Analysis.WorkoutAdjustment != "" {
						fmt.Fprintln(w, res.Analysis.WorkoutAdjustment)
					}
				})
			})
		},
	}
	rf := record.Flags()
	rf.Float64Var(&hours, "hours", 0, "Hours slept")
	rf.StringVar(&quality, "quality", "", "Poor, Fair, Good or Excellent")
	rf.StringVar(&soreness, "soreness", "None", "None, Low, Medium or High")
	rf.StringVar(&at, "at", "", "Day the log belongs to (RFC 3339 or YYYY-MM-DD)")
	_ = record.MarkFlagRequired("hours")
	_ = record.MarkFlagRequired("quality")

	sleep.AddCommand(history, record)
	return sleep
}
