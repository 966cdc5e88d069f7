package main

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"

	"github.com/clinicbook/clinicbook/internal/auth"
	"github.com/clinicbook/clinicbook/internal/config"
	"github.com/clinicbook/clinicbook/internal/db"
	"github.com/clinicbook/clinicbook/internal/scheduling"
)

const (
	clinicCount          = 3
	professionalsPer     = 4
	patientsPer          = 40
	appointmentDays      = 14
	defaultSeedPassword  = "clinicbook123"
	appointmentsPerProfD = 6
)

var serviceCatalog = []struct {
	name     string
	duration int
	price    float64
}{
	{"Consulta general", 30, 80},
	{"Control de rutina", 20, 50},
	{"Limpieza dental", 45, 120},
	{"Evaluacion nutricional", 40, 90},
	{"Terapia fisica", 60, 150},
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, cfg.PostgresMaxConns)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	repo := scheduling.NewPgRepository(pool)
	loc := cfg.Location()

	seedCtx := context.Background()
	if err := seed(seedCtx, repo, loc); err != nil {
		log.Fatalf("seed: %v", err)
	}

	log.Println("seed complete")
}

func seed(ctx context.Context, repo scheduling.Repository, loc *time.Location) error {
	passwordHash, err := auth.HashPassword(defaultSeedPassword)
	if err != nil {
		return fmt.Errorf("hash seed password: %w", err)
	}

	superName := "Administrador General"
	super := &scheduling.User{
		ID:           uuid.New(),
		Username:     "superadmin",
		Email:        "superadmin@clinicbook.pe",
		PasswordHash: passwordHash,
		Role:         scheduling.RoleSuperAdmin,
		FullName:     &superName,
		IsActive:     true,
	}
	if err := repo.CreateUser(ctx, super); err != nil {
		return fmt.Errorf("create super admin: %w", err)
	}
	log.Printf("super admin: superadmin / %s", defaultSeedPassword)

	for i := 0; i < clinicCount; i++ {
		if err := seedClinic(ctx, repo, loc, passwordHash, i); err != nil {
			return err
		}
	}
	return nil
}

func seedClinic(ctx context.Context, repo scheduling.Repository, loc *time.Location, passwordHash string, idx int) error {
	phone := fmt.Sprintf("01%07d", gofakeit.Number(1000000, 9999999))
	email := fmt.Sprintf("contacto%d@clinicbook.pe", idx+1)
	address := gofakeit.Street() + ", Lima"

	clinic := &scheduling.Clinic{
		ID:         uuid.New(),
		Name:       fmt.Sprintf("Clinica %s", gofakeit.LastName()),
		Phone:      &phone,
		Email:      &email,
		Address:    &address,
		ThemeColor: gofakeit.HexColor(),
		Plan:       gofakeit.RandomString([]string{"basic", "premium"}),
		IsActive:   true,
	}
	if err := repo.CreateClinic(ctx, clinic); err != nil {
		return fmt.Errorf("create clinic: %w", err)
	}
	log.Printf("seeding clinic %q", clinic.Name)

	adminName := gofakeit.Name()
	admin := &scheduling.User{
		ID:           uuid.New(),
		Username:     fmt.Sprintf("admin%d", idx+1),
		Email:        fmt.Sprintf("admin%d@clinicbook.pe", idx+1),
		PasswordHash: passwordHash,
		Role:         scheduling.RoleClinicAdmin,
		ClinicID:     &clinic.ID,
		FullName:     &adminName,
		IsActive:     true,
	}
	if err := repo.CreateUser(ctx, admin); err != nil {
		return fmt.Errorf("create clinic admin: %w", err)
	}

	var services []scheduling.Service
	for _, s := range serviceCatalog {
		price := s.price
		service := scheduling.Service{
			ID:              uuid.New(),
			ClinicID:        clinic.ID,
			Name:            s.name,
			DurationMinutes: s.duration,
			Price:           &price,
			IsActive:        true,
		}
		if err := repo.CreateService(ctx, &service); err != nil {
			return fmt.Errorf("create service: %w", err)
		}
		services = append(services, service)
	}

	var professionals []scheduling.User
	for p := 0; p < professionalsPer; p++ {
		name := gofakeit.Name()
		username := strings.ToLower(gofakeit.Username()) + fmt.Sprint(gofakeit.Number(10, 99))
		prof := scheduling.User{
			ID:           uuid.New(),
			Username:     username,
			Email:        username + "@clinicbook.pe",
			PasswordHash: passwordHash,
			Role:         scheduling.RoleProfessional,
			ClinicID:     &clinic.ID,
			FullName:     &name,
			IsActive:     true,
		}
		if err := repo.CreateUser(ctx, &prof); err != nil {
			return fmt.Errorf("create professional: %w", err)
		}
		professionals = append(professionals, prof)
	}

	var patients []scheduling.Patient
	for p := 0; p < patientsPer; p++ {
		patient := scheduling.Patient{
			ID:       uuid.New(),
			ClinicID: clinic.ID,
			Name:     gofakeit.Name(),
			Phone:    fmt.Sprintf("9%08d", gofakeit.Number(10000000, 99999999)),
		}
		if gofakeit.Bool() {
			email := gofakeit.Email()
			patient.Email = &email
		}
		if err := repo.CreatePatient(ctx, &patient); err != nil {
			return fmt.Errorf("create patient: %w", err)
		}
		patients = append(patients, patient)
	}

	return seedAppointments(ctx, repo, loc, clinic, professionals, patients, services)
}

// seedAppointments walks each professional's day on a 30-minute grid and
// books sequential slots, so generated data never violates the overlap
// constraint.
func seedAppointments(ctx context.Context, repo scheduling.Repository, loc *time.Location,
	clinic *scheduling.Clinic, professionals []scheduling.User,
	patients []scheduling.Patient, services []scheduling.Service) error {

	now := time.Now().In(loc)
	firstDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc).AddDate(0, 0, -appointmentDays/2)

	total := 0
	for day := 0; day < appointmentDays; day++ {
		date := firstDay.AddDate(0, 0, day)
		for i := range professionals {
			prof := &professionals[i]
			cursor := time.Date(date.Year(), date.Month(), date.Day(), 9, 0, 0, 0, loc)

			for n := 0; n < appointmentsPerProfD; n++ {
				// Random gap keeps the calendar from looking mechanical.
				cursor = cursor.Add(time.Duration(gofakeit.Number(0, 2)) * 30 * time.Minute)

				service := services[gofakeit.Number(0, len(services)-1)]
				patient := patients[gofakeit.Number(0, len(patients)-1)]
				end := cursor.Add(time.Duration(service.DurationMinutes) * time.Minute)
				if end.Hour() >= 19 {
					break
				}

				appt := scheduling.Appointment{
					ID:             uuid.New(),
					ClinicID:       clinic.ID,
					ProfessionalID: prof.ID,
					PatientID:      patient.ID,
					ServiceID:      &service.ID,
					StartTime:      cursor,
					EndTime:        end,
					Status:         pastOrScheduled(cursor, now),
				}
				if appt.Status == scheduling.StatusCancelled {
					reason := "cancelado por el paciente"
					at := cursor.Add(-24 * time.Hour)
					appt.CancellationReason = &reason
					appt.CancelledAt = &at
				}

				if err := repo.CreateAppointment(ctx, &appt); err != nil {
					return fmt.Errorf("create appointment: %w", err)
				}
				total++
				cursor = end
			}
		}
	}

	log.Printf("seeded %d appointments for %q", total, clinic.Name)
	return nil
}

func pastOrScheduled(start time.Time, now time.Time) scheduling.AppointmentStatus {
	if start.After(now) {
		if gofakeit.Number(1, 10) == 1 {
			return scheduling.StatusCancelled
		}
		return scheduling.StatusScheduled
	}

	switch gofakeit.Number(1, 10) {
	case 1:
		return scheduling.StatusCancelled
	case 2:
		return scheduling.StatusNoShow
	default:
		return scheduling.StatusCompleted
	}
}
