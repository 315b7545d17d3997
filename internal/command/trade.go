package command

import (
	"strings"

	"ambientsaga/internal/txn"
)

// tradeItem buys from or sells to a merchant at the catalog price. A
// merchant sells at most its catalog stock, less what it already sold to
// this avatar.
func (s *Service) tradeItem(sess *session, c TradeItem) error {
	merchant, ok := sess.catalog.CharacterByName(c.Merchant)
	if !ok {
		return notFound("merchant", c.Merchant)
	}
	if !merchant.Merchant {
		return invalid("%s does not trade", merchant.Name)
	}
	if st, ok := sess.state.Characters[merchant.Name]; ok && st.Defeated {
		return invalid("merchant %s is defeated", merchant.Name)
	}
	item, ok := sess.catalog.ItemByName(c.Item)
	if !ok {
		return notFound("item", c.Item)
	}
	price := item.Price * c.Quantity

	direction := txn.DirectionSell
	amount := price
	if c.Buy {
		direction = txn.DirectionBuy
		amount = -price
		stock := 0
		for name, n := range merchant.Stock {
			if strings.EqualFold(name, item.Name) {
				stock = n
			}
		}
		remaining := stock - sess.state.MerchantSold[merchant.Name][item.Name]
		if c.Quantity > remaining {
			return invalid("%s has %d %s in stock, asked for %d", merchant.Name, remaining, item.Name, c.Quantity)
		}
		if sess.state.Currency < price {
			return invalid("insufficient currency: have %d need %d", sess.state.Currency, price)
		}
	} else if have := sess.state.Inventory[item.Name]; have < c.Quantity {
		return invalid("cannot sell %d %s, inventory holds %d", c.Quantity, item.Name, have)
	}

	sess.emit(txn.KindItemTraded, txn.Payload{
		txn.KeyMerchant:  merchant.Name,
		txn.KeyItem:      item.Name,
		txn.KeyQuantity:  txn.Itoa(c.Quantity),
		txn.KeyDirection: direction,
		txn.KeyPrice:     txn.Itoa(price),
	})
	if price != 0 {
		sess.emit(txn.KindCurrencyTransferred, txn.Payload{
			txn.KeyAmount:   txn.Itoa(amount),
			txn.KeyReason:   "trade",
			txn.KeyMerchant: merchant.Name,
		})
	}
	return nil
}
