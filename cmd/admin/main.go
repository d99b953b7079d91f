// Package main is the admin console client: course management, session
// administration, announcements, and the live dashboard channel.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/courseflow/courseflow/internal/client/api"
	"github.com/courseflow/courseflow/internal/client/device"
	"github.com/courseflow/courseflow/internal/client/notify"
	"github.com/courseflow/courseflow/internal/client/realtime"
	"github.com/courseflow/courseflow/internal/client/session"
	"github.com/courseflow/courseflow/internal/client/store"
	"github.com/courseflow/courseflow/internal/config"
	"github.com/courseflow/courseflow/internal/logger"
	"github.com/courseflow/courseflow/internal/models"
)

const appName = "admin"

var (
	version   string
	buildDate string
)

type console struct {
	sessions *session.Manager
	apiC     *api.Client
	push     *realtime.Service
	log      *zap.Logger
}

func main() {
	cfg := config.MustLoad()

	var (
		baseURL string
		debug   bool
		showVer bool
	)
	flag.StringVar(&baseURL, "url", cfg.API.BaseURL, "REST backend base URL")
	flag.BoolVar(&debug, "debug", cfg.App.Debug, "verbose logging")
	flag.BoolVar(&showVer, "version", false, "show build version and date")
	flag.Parse()
	cfg.API.BaseURL = baseURL

	if showVer {
		fmt.Printf("courseflow admin\nVersion: %s\nBuild Date: %s\n", version, buildDate)
		return
	}

	log, err := logger.New(debug)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to init logger:", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := store.Open(cfg.Store.FilePath(appName))
	if err != nil {
		log.Fatal("failed to open local store", zap.Error(err))
	}
	st.StartWatch(ctx, cfg.Store.WatchInterval, log)

	sessions := store.NewSessions(st)
	apiC := api.New(cfg.API.BaseURL, cfg.API.Timeout, sessions.Token)
	notifier := notify.NewConsole(log)

	mgr := session.NewManager(session.Options{
		API:                apiC,
		Storage:            sessions,
		Device:             device.New(appName, cfg.App.Version),
		Logger:             log,
		Interval:           cfg.Session.ValidateInterval,
		MaxNetworkFailures: cfg.Session.MaxNetworkFailures,
	})
	defer mgr.Close()
	mgr.OnExpired(func() {
		fmt.Println("Your admin session has expired. Please log in again.")
	})

	hb := cfg.Realtime.HeartbeatInterval
	if !cfg.Realtime.HeartbeatEnabled {
		hb = 0
	}
	push := realtime.NewService(realtime.Options{
		URL:               cfg.Realtime.URL,
		Token:             sessions.Token,
		Notifier:          notifier,
		Logger:            log,
		ReconnectAttempts: cfg.Realtime.ReconnectAttempts,
		ReconnectDelay:    cfg.Realtime.ReconnectDelay,
		HeartbeatInterval: hb,
	})
	defer push.Disconnect()

	// keep the latest pushed dashboard snapshot visible in logs
	push.On(realtime.EventDashboardUpdate, func(data json.RawMessage) {
		var stats models.DashboardStats
		if err := json.Unmarshal(data, &stats); err == nil {
			log.Info("dashboard update",
				zap.Int("activeUsers", stats.ActiveUsers),
				zap.Float64("revenue", stats.Revenue),
			)
		}
	})

	c := &console{sessions: mgr, apiC: apiC, push: push, log: log}

	if mgr.Resume() {
		if info, ok := sessions.Session(); ok {
			push.Connect(ctx, info.UserID, info.Role)
		}
	}
	c.repl(ctx, sessions)
}

func (c *console) repl(ctx context.Context, sessions *store.Sessions) {
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("admin> ")
		if !scanner.Scan() {
			break
		}
		args := strings.Fields(strings.TrimSpace(scanner.Text()))
		if len(args) == 0 {
			continue
		}
		switch args[0] {
		case "help":
			fmt.Println("Available commands: help, login <email> <password>, logout, courses,")
			fmt.Println("  course-add <id> <price> <lessons> <title...>, course-del <id>,")
			fmt.Println("  expiry <courseId> <userId> <days>, force-logout <userId>,")
			fmt.Println("  announce <message...>, notify-user <userId> <message...>,")
			fmt.Println("  notify-role <role> <message...>, dashboard, payments, exit")
		case "login":
			if len(args) < 3 {
				fmt.Println("Usage: login <email> <password>")
				continue
			}
			c.login(ctx, sessions, args[1], args[2], scanner)
		case "logout":
			c.push.Disconnect()
			c.sessions.Logout(ctx)
			fmt.Println("Logged out")
		case "courses":
			courses, err := c.apiC.Courses(ctx)
			if err != nil {
				fmt.Println("Failed to load catalog:", err)
				continue
			}
			for _, course := range courses {
				fmt.Printf("%-12s %-30s $%.2f published=%v\n", course.ID, course.Title, course.Price, course.Published)
			}
		case "course-add":
			if len(args) < 5 {
				fmt.Println("Usage: course-add <id> <price> <lessons> <title...>")
				continue
			}
			c.addCourse(ctx, args[1], args[2], args[3], strings.Join(args[4:], " "))
		case "course-del":
			if len(args) < 2 {
				fmt.Println("Usage: course-del <id>")
				continue
			}
			if err := c.apiC.DeleteCourse(ctx, args[1]); err != nil {
				fmt.Println("Failed to delete course:", err)
			}
		case "expiry":
			if len(args) < 4 {
				fmt.Println("Usage: expiry <courseId> <userId> <days>")
				continue
			}
			c.setExpiry(ctx, args[1], args[2], args[3])
		case "force-logout":
			if len(args) < 2 {
				fmt.Println("Usage: force-logout <userId>")
				continue
			}
			if err := c.apiC.ForceLogout(ctx, args[1]); err != nil {
				fmt.Println("Force logout failed:", err)
			} else {
				fmt.Println("Session terminated")
			}
		case "announce":
			if len(args) < 2 {
				fmt.Println("Usage: announce <message...>")
				continue
			}
			msg := strings.Join(args[1:], " ")
			if err := c.push.BroadcastAnnouncement(msg, models.SeverityInfo); err != nil {
				fmt.Println("Broadcast failed:", err)
			}
		case "notify-user":
			if len(args) < 3 {
				fmt.Println("Usage: notify-user <userId> <message...>")
				continue
			}
			c.notifyUser(args[1], strings.Join(args[2:], " "))
		case "notify-role":
			if len(args) < 3 {
				fmt.Println("Usage: notify-role <role> <message...>")
				continue
			}
			n := models.Notification{
				ID:        uuid.NewString(),
				Title:     "Message from admin",
				Message:   strings.Join(args[2:], " "),
				Severity:  models.SeverityInfo,
				CreatedAt: time.Now(),
			}
			if err := c.push.SendRoleNotification(args[1], n); err != nil {
				fmt.Println("Notify failed:", err)
			}
		case "dashboard":
			stats, err := c.apiC.AdminDashboard(ctx)
			if err != nil {
				fmt.Println("Dashboard unavailable:", err)
				continue
			}
			fmt.Printf("Active users: %d  Courses: %d  Enrollments: %d  Revenue: $%.2f\n",
				stats.ActiveUsers, stats.TotalCourses, stats.Enrollments, stats.Revenue)
		case "payments":
			payments, err := c.apiC.Payments(ctx)
			if err != nil {
				fmt.Println("Failed to load payments:", err)
				continue
			}
			for _, p := range payments {
				fmt.Printf("%-12s $%.2f %s\n", p.ID, p.Amount, p.Status)
			}
		case "exit":
			fmt.Println("Bye")
			return
		default:
			fmt.Println("Unknown command. Type 'help' for a list of commands.")
		}
	}
}

func (c *console) login(ctx context.Context, sessions *store.Sessions, email, password string, scanner *bufio.Scanner) {
	err := c.sessions.Login(ctx, email, password, false)
	if errors.Is(err, api.ErrActiveSession) {
		fmt.Print("Another session is active. Log out the other device? (y/n): ")
		if !scanner.Scan() || strings.TrimSpace(scanner.Text()) != "y" {
			fmt.Println("Login cancelled")
			return
		}
		err = c.sessions.Login(ctx, email, password, true)
	}
	if err != nil {
		fmt.Println("Login failed:", err)
		return
	}
	fmt.Println("Logged in")
	if info, ok := sessions.Session(); ok {
		c.push.Connect(ctx, info.UserID, info.Role)
	}
}

func (c *console) addCourse(ctx context.Context, id, priceStr, lessonsStr, title string) {
	price, err := strconv.ParseFloat(priceStr, 64)
	if err != nil {
		fmt.Println("Invalid price:", priceStr)
		return
	}
	lessons, err := strconv.Atoi(lessonsStr)
	if err != nil {
		fmt.Println("Invalid lesson count:", lessonsStr)
		return
	}
	created, err := c.apiC.CreateCourse(ctx, models.Course{
		ID:          id,
		Title:       title,
		Price:       price,
		LessonCount: lessons,
		Published:   true,
	})
	if err != nil {
		fmt.Println("Failed to create course:", err)
		return
	}
	fmt.Println("Created course", created.ID)

	// mirror the create over the socket so other admin consoles refresh
	action := realtime.AdminAction{Type: "course-created"}
	if b, err := json.Marshal(created); err == nil {
		action.Payload = b
	}
	if err := c.push.SendAdminAction(action); err != nil {
		c.log.Debug("admin action push skipped", zap.Error(err))
	}
}

func (c *console) setExpiry(ctx context.Context, courseID, userID, daysStr string) {
	days, err := strconv.Atoi(daysStr)
	if err != nil {
		fmt.Println("Invalid day count:", daysStr)
		return
	}
	expiresAt := time.Now().AddDate(0, 0, days)
	if err := c.apiC.SetCourseExpiry(ctx, courseID, userID, expiresAt); err != nil {
		fmt.Println("Failed to set expiry:", err)
		return
	}
	fmt.Printf("Access to %s expires %s\n", courseID, expiresAt.Format("2006-01-02"))
}

func (c *console) notifyUser(userID, message string) {
	n := models.Notification{
		ID:        uuid.NewString(),
		Title:     "Message from admin",
		Message:   message,
		Severity:  models.SeverityInfo,
		CreatedAt: time.Now(),
	}
	if err := c.push.SendUserNotification(userID, n); err != nil {
		fmt.Println("Notify failed:", err)
	}
}
