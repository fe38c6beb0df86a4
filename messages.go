package gxserialagent

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

func init() {
	// English
	message.SetString(language.AmericanEnglish, "msg.opening_port", "Opening serial port %s")
	message.SetString(language.AmericanEnglish, "msg.port_open", "Serial port open: %s")
	message.SetString(language.AmericanEnglish, "msg.open_failed", "Opening serial port %s failed: %v")
	message.SetString(language.AmericanEnglish, "msg.closing_port", "Closing serial port %s")
	message.SetString(language.AmericanEnglish, "msg.port_closed", "Serial port %s closed")
	message.SetString(language.AmericanEnglish, "msg.retry", "Setting serial parameters of %s failed on attempt %d: %v")
	message.SetString(language.AmericanEnglish, "msg.modem_line", "Clearing %s of %s failed: %v")
	message.SetString(language.AmericanEnglish, "msg.close_failed", "Closing %s of %s failed: %v")
	message.SetString(language.AmericanEnglish, "msg.read_failed", "Reading from %s failed: %v")
	message.SetString(language.AmericanEnglish, "msg.no_serial_port_selected", "No serial port selected. Please select a serial port.")

	// German
	message.SetString(language.German, "msg.opening_port", "Serielle Schnittstelle %s wird geöffnet")
	message.SetString(language.German, "msg.port_open", "Serielle Schnittstelle geöffnet: %s")
	message.SetString(language.German, "msg.open_failed", "Öffnen der seriellen Schnittstelle %s fehlgeschlagen: %v")
	message.SetString(language.German, "msg.closing_port", "Serielle Schnittstelle %s wird geschlossen")
	message.SetString(language.German, "msg.port_closed", "Serielle Schnittstelle %s wurde geschlossen")
	message.SetString(language.German, "msg.retry", "Setzen der Parameter von %s fehlgeschlagen, Versuch %d: %v")
	message.SetString(language.German, "msg.modem_line", "Zurücksetzen von %s an %s fehlgeschlagen: %v")
	message.SetString(language.German, "msg.close_failed", "Schließen von %s an %s fehlgeschlagen: %v")
	message.SetString(language.German, "msg.read_failed", "Lesen von %s fehlgeschlagen: %v")
	message.SetString(language.German, "msg.no_serial_port_selected", "Kein serieller Port ausgewählt. Bitte wählen Sie einen seriellen Port aus.")

	// Finnish
	message.SetString(language.Finnish, "msg.opening_port", "Avataan sarjaportti %s")
	message.SetString(language.Finnish, "msg.port_open", "Sarjaportti avattu: %s")
	message.SetString(language.Finnish, "msg.open_failed", "Sarjaportin %s avaaminen epäonnistui: %v")
	message.SetString(language.Finnish, "msg.closing_port", "Suljetaan sarjaportti %s")
	message.SetString(language.Finnish, "msg.port_closed", "Sarjaportti %s suljettu")
	message.SetString(language.Finnish, "msg.retry", "Sarjaportin %s asetusten asettaminen epäonnistui yrityksellä %d: %v")
	message.SetString(language.Finnish, "msg.modem_line", "Linjan %s nollaus portissa %s epäonnistui: %v")
	message.SetString(language.Finnish, "msg.close_failed", "Kohteen %s sulkeminen portissa %s epäonnistui: %v")
	message.SetString(language.Finnish, "msg.read_failed", "Lukeminen portista %s epäonnistui: %v")
	message.SetString(language.Finnish, "msg.no_serial_port_selected", "Sarjaporttia ei ole valittu. Valitse sarjaportti.")

	// Swedish
	message.SetString(language.Swedish, "msg.opening_port", "Öppnar serieport %s")
	message.SetString(language.Swedish, "msg.port_open", "Serieport öppen: %s")
	message.SetString(language.Swedish, "msg.open_failed", "Öppning av serieport %s misslyckades: %v")
	message.SetString(language.Swedish, "msg.closing_port", "Stänger serieport %s")
	message.SetString(language.Swedish, "msg.port_closed", "Serieport %s stängd")
	message.SetString(language.Swedish, "msg.retry", "Inställning av parametrar för %s misslyckades, försök %d: %v")
	message.SetString(language.Swedish, "msg.modem_line", "Nollställning av %s på %s misslyckades: %v")
	message.SetString(language.Swedish, "msg.close_failed", "Stängning av %s på %s misslyckades: %v")
	message.SetString(language.Swedish, "msg.read_failed", "Läsning från %s misslyckades: %v")
	message.SetString(language.Swedish, "msg.no_serial_port_selected", "Ingen seriell port vald. Välj en seriell port.")
}
