package stdlib

import (
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/lemonberrylabs/bigrun/pkg/token"
	"github.com/lemonberrylabs/bigrun/pkg/types"
)

var (
	firstNames = []string{
		"James", "Mary", "John", "Patricia", "Robert", "Jennifer", "Michael", "Linda", "William", "Elizabeth",
		"David", "Barbara", "Richard", "Susan", "Joseph", "Jessica", "Thomas", "Sarah", "Charles", "Karen",
		"Daniel", "Lisa", "Matthew", "Nancy", "Anthony", "Betty", "Mark", "Sandra", "Steven", "Emily",
	}
	lastNames = []string{
		"Smith", "Johnson", "Williams", "Brown", "Jones", "Garcia", "Miller", "Davis", "Rodriguez", "Martinez",
		"Hernandez", "Lopez", "Gonzalez", "Wilson", "Anderson", "Thomas", "Taylor", "Moore", "Jackson", "Martin",
		"Lee", "Perez", "Thompson", "White", "Harris", "Sanchez", "Clark", "Ramirez", "Lewis", "Robinson",
	}
	zips    = []string{"90001", "90011", "90026", "90027", "90028", "90029", "90036", "90038", "90045", "90048"}
	streets = []string{
		"AlamedaStreet", "AdamsBoulevard", "BeverlyBoulevard", "Broadway", "CentralAvenue", "FairfaxAvenue",
		"FigueroaStreet", "GrandAvenue", "HighlandAvenue", "LincolnBoulevard", "MelroseAvenue", "MulhollandDrive",
		"OlympicBoulevard", "PicoBoulevard", "SunsetBoulevard", "VenturaBoulevard", "WilshireBoulevard",
	}
	userAgents = []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/136.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:139.0) Gecko/20100101 Firefox/139.0",
		"Mozilla/5.0 (Linux; Android 14; Pixel 7 Pro) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/136.0.7103.60 Mobile Safari/537.36",
		"Mozilla/5.0 (Android 14; Mobile; rv:138.0) Gecko/138.0 Firefox/138.0",
		"Mozilla/5.0 (Linux; Android 14; SM-G998B) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/136.0.7103.60 Mobile Safari/537.36 SamsungBrowser/23.0",
	}
	mailHosts = []string{"gmail", "hotmail", "outlook"}
)

func pick(list []string) string {
	return list[rand.IntN(len(list))]
}

// randomBetween returns an integer in [lo, hi] as text. Bounds that are
// not numbers fall back to 0 and 100.
func randomBetween(loText, hiText string) string {
	lo, err := strconv.Atoi(strings.TrimSpace(loText))
	if err != nil {
		lo = 0
	}
	hi, err := strconv.Atoi(strings.TrimSpace(hiText))
	if err != nil {
		hi = 100
	}
	if hi < lo {
		lo, hi = hi, lo
	}
	return strconv.Itoa(lo + rand.IntN(hi-lo+1))
}

func randomEmail(first, last string) string {
	digits := 2
	if rand.IntN(2) == 0 {
		digits = 4
	}
	limit := 100
	if digits == 4 {
		limit = 10000
	}
	num := fmt.Sprintf("%0*d", digits, rand.IntN(limit))
	if rand.IntN(2) == 0 {
		return fmt.Sprintf("%s%s%s@%s.com", strings.ToLower(first), strings.ToLower(last), num, pick(mailHosts))
	}
	return fmt.Sprintf("%s%s@%s.com", strings.ToLower(first), num, pick(mailHosts))
}

// getLuck binds generated persona data with toks[j] on "luck":
// random A B, number A [to] B, name, first, last, zip, street, ua, email,
// uuid.
func getLuck(h types.Host, i *int, toks []token.Token, j int) {
	k := j + 1
	switch word(h, peek(toks, k)) {
	case "random", "number":
		lo, end := text(h, toks, k+1)
		if peek(toks, end+1).Kind == token.To {
			end++
		}
		hi, end := text(h, toks, end+1)
		bind(h, i, toks, end, randomBetween(lo, hi))
	case "name":
		bind(h, i, toks, k, pick(firstNames), pick(lastNames))
	case "first":
		bind(h, i, toks, k, pick(firstNames))
	case "last":
		bind(h, i, toks, k, pick(lastNames))
	case "zip":
		bind(h, i, toks, k, pick(zips))
	case "street":
		bind(h, i, toks, k, pick(streets))
	case "ua":
		bind(h, i, toks, k, pick(userAgents))
	case "email":
		bind(h, i, toks, k, randomEmail(pick(firstNames), pick(lastNames)))
	case "uuid":
		bind(h, i, toks, k, uuid.NewString())
	default:
		abandon(i, toks)
	}
}
