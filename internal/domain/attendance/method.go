package attendance

import (
	"fmt"
	"strings"
)

type MethodKind string

const (
	MethodGeo     MethodKind = "geo"
	MethodGeoFace MethodKind = "geo_face"
	MethodKiosk   MethodKind = "kiosk_pin"
	MethodQR      MethodKind = "qr"
)

func (k MethodKind) Valid() bool {
	switch k {
	case MethodGeo, MethodGeoFace, MethodKiosk, MethodQR:
		return true
	}
	return false
}

// Method - закрытый набор способов отметки. Новые способы добавляются
// только в этом пакете, все switch по типу обязаны их обработать.
type Method interface {
	Kind() MethodKind
	// RequiresBiometric - нужен ли захват лица.
	RequiresBiometric() bool
	// AllowsLocationFallback - можно ли завершить отметку без координат.
	AllowsLocationFallback() bool
	// RequiresPIN - нужен ли PIN сотрудника до начала проверки.
	RequiresPIN() bool

	method()
}

// GeoMethod - отметка с телефона по геолокации, опционально с лицом.
type GeoMethod struct {
	Biometric bool
}

func (m GeoMethod) Kind() MethodKind {
	if m.Biometric {
		return MethodGeoFace
	}
	return MethodGeo
}

func (m GeoMethod) RequiresBiometric() bool      { return m.Biometric }
func (m GeoMethod) AllowsLocationFallback() bool { return false }
func (m GeoMethod) RequiresPIN() bool            { return false }
func (GeoMethod) method()                        {}

// KioskMethod - стационарный терминал на площадке, сотрудник вводит PIN.
type KioskMethod struct {
	KioskID string
	PIN     string
}

func (KioskMethod) Kind() MethodKind             { return MethodKiosk }
func (KioskMethod) RequiresBiometric() bool      { return false }
func (KioskMethod) AllowsLocationFallback() bool { return true }
func (KioskMethod) RequiresPIN() bool            { return true }
func (KioskMethod) method()                      {}

// QRMethod - сканирование кода, вывешенного на площадке.
// Payload имеет вид "site:<site_id>".
type QRMethod struct {
	Payload string
}

func (QRMethod) Kind() MethodKind             { return MethodQR }
func (QRMethod) RequiresBiometric() bool      { return false }
func (QRMethod) AllowsLocationFallback() bool { return true }
func (QRMethod) RequiresPIN() bool            { return false }
func (QRMethod) method()                      {}

// SiteID извлекает идентификатор площадки из кода.
func (m QRMethod) SiteID() (string, error) {
	site, ok := strings.CutPrefix(strings.TrimSpace(m.Payload), "site:")
	if !ok || site == "" {
		return "", ErrInvalidQRPayload
	}
	return site, nil
}

// NewMethod собирает вариант по его виду. credential - PIN для киоска
// или содержимое QR-кода, для остальных игнорируется.
func NewMethod(kind MethodKind, credential string) (Method, error) {
	switch kind {
	case MethodGeo:
		return GeoMethod{}, nil
	case MethodGeoFace:
		return GeoMethod{Biometric: true}, nil
	case MethodKiosk:
		if credential == "" {
			return nil, ErrPINRequired
		}
		return KioskMethod{PIN: credential}, nil
	case MethodQR:
		m := QRMethod{Payload: credential}
		if _, err := m.SiteID(); err != nil {
			return nil, err
		}
		return m, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMethod, kind)
	}
}

// Describe возвращает человекочитаемое название способа.
func Describe(m Method) string {
	switch v := m.(type) {
	case GeoMethod:
		if v.Biometric {
			return "геолокация + лицо"
		}
		return "геолокация"
	case KioskMethod:
		if v.KioskID != "" {
			return "киоск " + v.KioskID
		}
		return "киоск"
	case QRMethod:
		return "QR-код"
	default:
		panic(fmt.Sprintf("unhandled method %T", m))
	}
}
