// Package db provides integration tests for SurrealDB operations.
package db

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/raphaelgruber/secretary-go/internal/models"
)

var testDB *Client
var testContainer testcontainers.Container

// TestMain sets up and tears down the SurrealDB container for all tests.
func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		os.Exit(m.Run())
	}

	// Disable ryuk (cleanup container) as it can cause issues in some environments
	os.Setenv("TESTCONTAINERS_RYUK_DISABLED", "true")

	ctx := context.Background()

	var err error
	testContainer, err = testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "surrealdb/surrealdb:v3.0.0-beta.1",
			ExposedPorts: []string{"8000/tcp"},
			Cmd:          []string{"start", "--log", "info", "--user", "root", "--pass", "root"},
			WaitingFor:   wait.ForLog("Started web server").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		log.Fatalf("Failed to start SurrealDB container: %v", err)
	}

	host, err := testContainer.Host(ctx)
	if err != nil {
		log.Fatalf("Failed to get container host: %v", err)
	}
	// Workaround: testcontainers may return "null" as host in some environments
	if host == "" || host == "null" {
		host = "localhost"
	}
	mappedPort, err := testContainer.MappedPort(ctx, "8000")
	if err != nil {
		log.Fatalf("Failed to get mapped port: %v", err)
	}

	testDB, err = NewClient(ctx, Config{
		URL:       fmt.Sprintf("ws://%s:%s/rpc", host, mappedPort.Port()),
		Namespace: "test",
		Database:  "test",
		Username:  "root",
		Password:  "root",
		AuthLevel: "root",
	}, nil)
	if err != nil {
		log.Fatalf("Failed to connect to test database: %v", err)
	}

	if err := testDB.InitSchema(ctx); err != nil {
		log.Fatalf("Failed to initialize schema: %v", err)
	}

	code := m.Run()

	_ = testDB.Close(ctx)
	_ = testContainer.Terminate(ctx)

	os.Exit(code)
}

func skipShort(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
}

func TestGetOrCreateContactIdempotent(t *testing.T) {
	skipShort(t)
	ctx := context.Background()

	first, err := testDB.GetOrCreateContact(ctx, "+5511999000001")
	require.NoError(t, err)
	require.Equal(t, "+5511999000001", first.Phone)

	second, err := testDB.GetOrCreateContact(ctx, "+5511999000001")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID, "same phone must resolve to the same contact")
}

func TestUpdateContactNameAndSummary(t *testing.T) {
	skipShort(t)
	ctx := context.Background()

	contact, err := testDB.GetOrCreateContact(ctx, "+5511999000002")
	require.NoError(t, err)

	require.NoError(t, testDB.UpdateContactName(ctx, contact.ID, "Maria Souza"))
	require.NoError(t, testDB.UpdateContactSummary(ctx, contact.ID, "prefers morning slots"))

	reloaded, err := testDB.GetOrCreateContact(ctx, "+5511999000002")
	require.NoError(t, err)
	assert.Equal(t, "Maria Souza", reloaded.Name)
	assert.Equal(t, "prefers morning slots", reloaded.Summary)
}

func TestConversationTurnState(t *testing.T) {
	skipShort(t)
	ctx := context.Background()

	contact, err := testDB.GetOrCreateContact(ctx, "+5511999000003")
	require.NoError(t, err)

	conv, err := testDB.GetOrCreateConversation(ctx, contact.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusAutomated, conv.Status)
	require.Equal(t, 0, conv.TurnCount)

	conv.TurnCount = 3
	conv.LastIntent = "create"
	conv.Collection = &models.Collection{
		Pending: "create",
		State:   models.StateAwaitingDate,
		Name:    "Maria Souza",
	}
	require.NoError(t, testDB.SaveTurnState(ctx, conv))

	again, err := testDB.GetOrCreateConversation(ctx, contact.ID)
	require.NoError(t, err)
	assert.Equal(t, conv.ID, again.ID, "open conversation must be reused")
	assert.Equal(t, 3, again.TurnCount)
	assert.Equal(t, "create", again.LastIntent)
	require.NotNil(t, again.Collection)
	assert.Equal(t, models.StateAwaitingDate, again.Collection.State)
	assert.Equal(t, "Maria Souza", again.Collection.Name)
}

func TestConversationStatusRoundTrip(t *testing.T) {
	skipShort(t)
	ctx := context.Background()

	contact, err := testDB.GetOrCreateContact(ctx, "+5511999000004")
	require.NoError(t, err)
	conv, err := testDB.GetOrCreateConversation(ctx, contact.ID)
	require.NoError(t, err)

	require.NoError(t, testDB.SetConversationStatus(ctx, conv.ID, models.StatusHuman))
	handed, err := testDB.GetOrCreateConversation(ctx, contact.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusHuman, handed.Status)

	require.NoError(t, testDB.ResetConversationStatus(ctx, conv.ID))
	released, err := testDB.GetOrCreateConversation(ctx, contact.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAutomated, released.Status)
	assert.Nil(t, released.Collection, "operator reset must clear collection state")
}

func TestTranscriptOrderAndWindow(t *testing.T) {
	skipShort(t)
	ctx := context.Background()

	contact, err := testDB.GetOrCreateContact(ctx, "+5511999000005")
	require.NoError(t, err)
	conv, err := testDB.GetOrCreateConversation(ctx, contact.ID)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		role := models.RoleUser
		if i%2 == 1 {
			role = models.RoleAssistant
		}
		require.NoError(t, testDB.AppendMessage(ctx, conv.ID, role, fmt.Sprintf("message %d", i), ""))
	}

	recent, err := testDB.RecentMessages(ctx, conv.ID, 3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	// Window keeps the newest entries, oldest first.
	assert.Equal(t, "message 2", recent[0].Content)
	assert.Equal(t, "message 4", recent[2].Content)
}

func TestAppointmentUniqueSlot(t *testing.T) {
	skipShort(t)
	ctx := context.Background()

	contact, err := testDB.GetOrCreateContact(ctx, "+5511999000006")
	require.NoError(t, err)

	at := time.Date(2026, 9, 3, 9, 30, 0, 0, time.UTC)
	appt, err := testDB.CreateAppointment(ctx, models.Appointment{
		Contact:     contact.ID,
		Subject:     "Maria Souza",
		Category:    models.CategorySelfPay,
		ScheduledAt: at,
	})
	require.NoError(t, err)

	_, err = testDB.CreateAppointment(ctx, models.Appointment{
		Contact:     contact.ID,
		Subject:     "Someone Else",
		Category:    models.CategorySelfPay,
		ScheduledAt: at,
	})
	require.ErrorIs(t, err, ErrAlreadyExists, "double booking the same slot must fail")

	found, err := testDB.GetAppointmentAt(ctx, contact.ID, at)
	require.NoError(t, err)
	assert.Equal(t, appt.ID, found.ID)

	listed, err := testDB.ListAppointmentsByContact(ctx, contact.ID)
	require.NoError(t, err)
	require.Len(t, listed, 1)

	require.NoError(t, testDB.DeleteAppointment(ctx, appt.ID))
	_, err = testDB.GetAppointmentAt(ctx, contact.ID, at)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestFulfillmentUniqueKey(t *testing.T) {
	skipShort(t)
	ctx := context.Background()

	missing, err := testDB.GetFulfillment(ctx, "conv9:7")
	require.NoError(t, err)
	assert.Nil(t, missing, "unknown key returns no fulfillment")

	require.NoError(t, testDB.PutFulfillment(ctx, "conv9:7", "create", `{"op":"create","outcome":"ok"}`))

	err = testDB.PutFulfillment(ctx, "conv9:7", "create", `{"op":"create","outcome":"ok"}`)
	require.ErrorIs(t, err, ErrAlreadyExists, "correlation keys are write-once")

	got, err := testDB.GetFulfillment(ctx, "conv9:7")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "create", got.Operation)
	assert.Contains(t, got.Response, `"outcome":"ok"`)
}

func TestRecordIncident(t *testing.T) {
	skipShort(t)
	ctx := context.Background()

	contact, err := testDB.GetOrCreateContact(ctx, "+5511999000007")
	require.NoError(t, err)
	conv, err := testDB.GetOrCreateConversation(ctx, contact.ID)
	require.NoError(t, err)

	require.NoError(t, testDB.RecordIncident(ctx, conv.ID, "malformed agenda response", "[AGENDA_RESPONSE] not-json"))
}
