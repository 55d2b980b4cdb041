package whatsapp

import (
	"VoiceBooking/database/postgres"
	"context"
	"fmt"
	"strings"
	"time"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"
	"google.golang.org/protobuf/proto"
)

type IWhatsappSender interface {
	SendMessage(ctx context.Context, phoneNumber, message string) error
	Disconnect() error
	IsConnected() bool
}

type whatsappSender struct {
	client *whatsmeow.Client
}

// New pairs with the device stored in postgres. The first run prints a QR code and waits up to a
// minute for it to be scanned.
func New(ctx context.Context) (IWhatsappSender, error) {
	dsn := postgres.FormatDSN()

	dbLog := waLog.Stdout("Database", "INFO", true)
	container, err := sqlstore.New(ctx, "postgres", dsn, dbLog)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	deviceStore, err := container.GetFirstDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get device store: %w", err)
	}

	client := whatsmeow.NewClient(deviceStore, waLog.Stdout("Client", "INFO", true))

	connected := make(chan struct{}, 1)
	client.AddEventHandler(func(evt interface{}) {
		if _, ok := evt.(*events.Connected); ok {
			select {
			case connected <- struct{}{}:
			default:
			}
		}
	})

	if client.Store.ID == nil {
		qrChan, _ := client.GetQRChannel(ctx)
		if err := client.Connect(); err != nil {
			return nil, fmt.Errorf("failed to connect: %w", err)
		}

		go func() {
			for evt := range qrChan {
				if evt.Event == "code" {
					fmt.Println("QR Code:", evt.Code)
				}
			}
		}()
	} else {
		if err := client.Connect(); err != nil {
			return nil, fmt.Errorf("failed to connect: %w", err)
		}
	}

	select {
	case <-connected:
	case <-time.After(60 * time.Second):
		client.Disconnect()
		return nil, fmt.Errorf("connection timeout")
	}

	return &whatsappSender{
		client: client,
	}, nil
}

func (w *whatsappSender) SendMessage(ctx context.Context, phoneNumber, message string) error {
	jid := types.NewJID(NormalizeNumber(phoneNumber), types.DefaultUserServer)

	waMsg := &waE2E.Message{
		Conversation: proto.String(message),
	}

	_, err := w.client.SendMessage(ctx, jid, waMsg)
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}

	return nil
}

func (w *whatsappSender) Disconnect() error {
	w.client.Disconnect()
	return nil
}

func (w *whatsappSender) IsConnected() bool {
	return w.client.IsConnected()
}

// NormalizeNumber turns an E.164 caller id such as "+1 (555) 010-0000" into the bare digits a JID uses.
func NormalizeNumber(phoneNumber string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, phoneNumber)
}
