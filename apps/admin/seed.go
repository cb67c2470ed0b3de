package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/trezcool/ratiba/core/profile"
	"github.com/trezcool/ratiba/core/schedule"
)

// seedWeek is the Sunday slots are anchored to; only the weekday and the clock time matter.
var seedWeek = time.Date(2024, time.January, 7, 0, 0, 0, 0, time.UTC)

type (
	seedData struct {
		Classrooms []string    `yaml:"classrooms"`
		Users      []seedUser  `yaml:"users"`
		Classes    []seedClass `yaml:"classes"`
	}

	seedUser struct {
		Email     string       `yaml:"email"`
		Password  string       `yaml:"password"`
		FirstName string       `yaml:"first_name"`
		LastName  string       `yaml:"last_name"`
		Role      profile.Role `yaml:"role"`
		TwoFactor bool         `yaml:"two_factor"`
	}

	seedClass struct {
		Title      string `yaml:"title"`
		Classroom  string `yaml:"classroom"`
		Instructor string `yaml:"instructor"` // email
		DayOfWeek  int    `yaml:"day_of_week"`
		Start      string `yaml:"start"` // 15:04
		End        string `yaml:"end"`
	}
)

func (cli *commandLine) seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed FILE",
		Short: "Load users, classrooms and classes from a YAML file (- reads stdin)",
		Long: "Users are created or updated, classrooms are added when missing. " +
			"Classes are always added, so seeding twice duplicates them.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var r io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return errors.Wrap(err, "opening seed file")
				}
				defer f.Close()
				r = f
			}

			var data seedData
			if err := yaml.NewDecoder(r).Decode(&data); err != nil {
				return errors.Wrap(err, "decoding seed file")
			}
			return cli.seed(cmd.Context(), data)
		},
	}
}

func (cli *commandLine) seed(ctx context.Context, data seedData) error {
	rooms := make(map[string]string, len(data.Classrooms))
	for _, name := range data.Classrooms {
		id, err := cli.classes.CreateClassroom(ctx, name)
		if err != nil {
			return err
		}
		rooms[name] = id
	}

	profiles := make(map[string]string, len(data.Users))
	for _, su := range data.Users {
		if !su.Role.Valid() {
			su.Role = profile.DefaultRole
		}
		usr, err := cli.addUser(ctx, su.Email, su.Password, su.Role, true)
		if err != nil {
			return errors.Wrapf(err, "seeding user %s", su.Email)
		}
		prof, err := cli.profSvc.Rename(ctx, usr.ID, su.FirstName, su.LastName)
		if err != nil {
			return errors.Wrapf(err, "naming user %s", su.Email)
		}
		if _, err = cli.setSvc.SetTwoFactor(ctx, prof.ID, su.TwoFactor); err != nil {
			return errors.Wrapf(err, "seeding settings of %s", su.Email)
		}
		profiles[usr.Email] = prof.ID
	}

	for _, sc := range data.Classes {
		c, err := sc.class(rooms, profiles)
		if err != nil {
			return errors.Wrapf(err, "seeding class %q", sc.Title)
		}
		if _, err = cli.classes.Create(ctx, c); err != nil {
			return errors.Wrapf(err, "seeding class %q", sc.Title)
		}
	}

	fmt.Fprintf(cli.out, "seeded %d classrooms, %d users and %d classes\n",
		len(data.Classrooms), len(data.Users), len(data.Classes))
	return nil
}

func (sc seedClass) class(rooms, profiles map[string]string) (schedule.Class, error) {
	if sc.DayOfWeek < 0 || sc.DayOfWeek > 6 {
		return schedule.Class{}, errors.Errorf("day_of_week %d out of range", sc.DayOfWeek)
	}
	day := seedWeek.AddDate(0, 0, sc.DayOfWeek)
	start, err := clockOn(day, sc.Start)
	if err != nil {
		return schedule.Class{}, err
	}
	end, err := clockOn(day, sc.End)
	if err != nil {
		return schedule.Class{}, err
	}
	if !end.After(start) {
		return schedule.Class{}, errors.New("end must be after start")
	}

	c := schedule.Class{
		Title: sc.Title,
		Slot:  schedule.Slot{StartTime: start, EndTime: end, DayOfWeek: sc.DayOfWeek},
	}
	if sc.Classroom != "" {
		id, ok := rooms[sc.Classroom]
		if !ok {
			return schedule.Class{}, errors.Errorf("unknown classroom %q", sc.Classroom)
		}
		c.Slot.ClassroomID = id
	}
	if sc.Instructor != "" {
		id, ok := profiles[strings.ToLower(strings.TrimSpace(sc.Instructor))]
		if !ok {
			return schedule.Class{}, errors.Errorf("unknown instructor %q", sc.Instructor)
		}
		c.InstructorID = id
	}
	return c, nil
}

func clockOn(day time.Time, clock string) (time.Time, error) {
	t, err := time.Parse("15:04", clock)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "parsing time %q", clock)
	}
	return day.Add(time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute), nil
}
