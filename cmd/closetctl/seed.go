package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"

	"github.com/closet/internal/db"
	"github.com/closet/internal/service"
)

type sampleGarment struct {
	name        string
	category    string
	temperature int
	colour      color.RGBA
}

var sampleGarments = []sampleGarment{
	{name: "Down jacket", category: "outerwear", temperature: 5, colour: color.RGBA{R: 40, G: 40, B: 60, A: 255}},
	{name: "Trench coat", category: "outerwear", temperature: 15, colour: color.RGBA{R: 190, G: 160, B: 110, A: 255}},
	{name: "Knit sweater", category: "tops", temperature: 12, colour: color.RGBA{R: 150, G: 30, B: 40, A: 255}},
	{name: "Cotton T-shirt", category: "tops", temperature: 26, colour: color.RGBA{R: 240, G: 240, B: 240, A: 255}},
	{name: "Wool slacks", category: "pants", temperature: 10, colour: color.RGBA{R: 70, G: 70, B: 70, A: 255}},
	{name: "Linen shorts", category: "pants", temperature: 28, colour: color.RGBA{R: 200, G: 190, B: 160, A: 255}},
	{name: "Pleated skirt", category: "skirt", temperature: 20, colour: color.RGBA{R: 30, G: 60, B: 120, A: 255}},
	{name: "Summer dress", category: "onepiece", temperature: 27, colour: color.RGBA{R: 250, G: 180, B: 190, A: 255}},
	{name: "Scarf", category: "other", temperature: 3, colour: color.RGBA{R: 200, G: 120, B: 30, A: 255}},
}

// SeedCmd fills a demo account with one garment per category and temperature band.
type SeedCmd struct {
	Email    string `default:"demo@example.com" help:"Demo account email."`
	Password string `default:"demo-password" help:"Demo account password."`
}

func (cmd *SeedCmd) Run(ctx *Context) error {
	background := context.Background()

	user, err := ctx.Services.Users.Register(background, cmd.Email, cmd.Password, "Demo")
	if errors.Is(err, service.ErrEmailTaken) {
		user, err = ctx.Services.Users.GetByEmail(background, cmd.Email)
	}
	if err != nil {
		return err
	}

	existing, err := ctx.Services.Garments.ListByOwner(background, user.UserID, service.GarmentFilter{})
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		fmt.Fprintf(ctx.Out, "%s already has %d garments, skipping\n", user.Email, len(existing))
		return nil
	}

	created := make([]db.Garment, 0, len(sampleGarments))
	for _, sample := range sampleGarments {
		data, err := solidPNG(sample.colour)
		if err != nil {
			return err
		}
		temperature := sample.temperature
		garment, err := ctx.Services.Garments.Create(background, user.UserID, service.GarmentInput{
			Name:               sample.name,
			Category:           sample.category,
			ComfortTemperature: &temperature,
			Image:              data,
		})
		if err != nil {
			return fmt.Errorf("create %s: %w", sample.name, err)
		}
		created = append(created, *garment)
	}

	fmt.Fprintf(ctx.Out, "seeded %d garments for %s (password %s)\n", len(created), user.Email, cmd.Password)
	return nil
}

func solidPNG(c color.RGBA) ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode sample image: %w", err)
	}
	return buf.Bytes(), nil
}
